package main

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vigilnetworks/ofcore/core"
	"github.com/vigilnetworks/ofcore/ofctrl"
)

func main() {
	viper.SetDefault("listen", []string{":6633"})
	viper.SetDefault("log-level", "info")
	viper.SetDefault("groups", core.DefaultGroups)

	viper.SetConfigName("ofcored")
	viper.AddConfigPath("/etc/ofcored/")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("OFCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.WithError(err).Fatal("could not read config file")
		}
	}

	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		log.WithError(err).Fatal("bad log level")
	}
	log.SetLevel(level)

	c := core.NewWithGroups(viper.GetInt("groups"))
	c.HandleSignals()

	ctrl := ofctrl.NewController(c)
	app := ofctrl.NewOfApp(ctrl)
	app.Register(c)

	for _, addr := range viper.GetStringSlice("listen") {
		if err := ctrl.Listen(addr); err != nil {
			log.WithError(err).Fatalf("could not listen on %s", addr)
		}
	}
	for _, addr := range viper.GetStringSlice("connect") {
		ctrl.Connect(addr, viper.GetBool("reliable"))
	}

	c.Run()
	if err := ctrl.Wait(); err != nil {
		log.WithError(err).Error("controller exited with error")
		os.Exit(1)
	}
}
