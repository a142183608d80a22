package ofctrl

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// How long the log fetcher waits for the switch to dial back.
const logFetchAcceptTimeout = 60 * time.Second

// FetchSwitchLogs fetches logs from switch dpid into outputFile,
// which is replaced if it already exists. Returns nil if the
// operation could be initiated; cb then eventually fires with a nil
// error and an explanatory message on success, or the failure
// otherwise.
//
// The controller opens an ephemeral listening port and asks the
// switch, via the "get-logs" remote command, to connect back and
// stream its log archive until EOF.
func (ctrl *Controller) FetchSwitchLogs(dpid DatapathId, outputFile string,
	cb func(err error, msg string)) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return err
	}

	// The local port number does not matter; let the kernel pick.
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		log.Warnf("could not listen on tcp socket: %v", err)
		return err
	}

	ip := c.LocalIP()
	port := listener.Addr().(*net.TCPAddr).Port
	args := []string{ip.String(), fmt.Sprintf("%d", port)}
	if err := c.SendRemoteCommand("get-logs", args); err != nil {
		log.Warnf("could not send remote command: %v", err)
		listener.Close()
		return err
	}

	go fetchLogs(listener, outputFile, cb)
	return nil
}

func fetchLogs(listener net.Listener, outputFile string, cb func(error, string)) {
	defer listener.Close()

	if tcp, ok := listener.(*net.TCPListener); ok {
		tcp.SetDeadline(time.Now().Add(logFetchAcceptTimeout))
	}
	conn, err := listener.Accept()
	if err != nil {
		logFetchDone(cb, err, "accept failed")
		return
	}
	defer conn.Close()

	output, err := os.Create(outputFile)
	if err != nil {
		logFetchDone(cb, err, fmt.Sprintf("could not create output file %s", outputFile))
		return
	}

	_, err = io.Copy(output, conn)
	// Close the file before invoking the callback, to ensure that
	// it is flushed to disk.
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logFetchDone(cb, err, "error reading socket")
		return
	}
	logFetchDone(cb, nil, "success")
}

func logFetchDone(cb func(error, string), err error, msg string) {
	log.Warnf("log file retrieval complete: %s", msg)
	if cb != nil {
		cb(err, msg)
	}
}
