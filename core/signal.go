package core

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// HandleSignals converts SIGINT, SIGTERM and SIGHUP into a single
// Shutdown event. Further signals after the first are ignored while
// shutdown is in progress.
func (c *Core) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		select {
		case sig := <-ch:
			log.Infof("received %s, shutting down", sig)
			c.Post(ShutdownEvent{})
			<-c.done
		case <-c.done:
		}
		signal.Stop(ch)
	}()
}
