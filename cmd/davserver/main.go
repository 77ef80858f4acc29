// Command davserver runs the WebDAV/CalDAV engine as a standalone HTTP
// server, selecting an in-memory or on-disk backend from flags.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fenthope/reco"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/dav"
	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	root := flag.String("root", "", "backing directory for an on-disk store; empty uses an in-memory store")
	quotaBytes := flag.Int64("quota-bytes", 0, "root quota limit in bytes; 0 disables quota enforcement")
	ignoreList := flag.String("ignore", "", "comma-separated extra glob patterns to hide from listings")
	caldav := flag.Bool("caldav", true, "enable the CalDAV calendar-access extension")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	flag.Parse()

	level := reco.LevelInfo
	if *debug {
		level = reco.LevelDebug
	}
	logger, err := reco.New(reco.Config{
		Level:      level,
		Mode:       reco.ModeText,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Async:      true,
	})
	if err != nil {
		panic(err)
	}
	defer logger.Close()

	var store backend.PersistAdapter
	if *root != "" {
		fsBackend, err := backend.NewOSFS(*root)
		if err != nil {
			logger.Errorf("opening backend root %q: %s", *root, err)
			os.Exit(1)
		}
		store = fsBackend
		logger.Infof("using on-disk backend at %s", *root)
	} else {
		store = backend.NewMemory()
		logger.Infof("using in-memory backend")
	}

	state := davstate.New(store)

	var ignorePatterns []string
	if *ignoreList != "" {
		ignorePatterns = strings.Split(*ignoreList, ",")
	}

	var calDAV *dav.CalDAV
	if *caldav {
		calDAV = dav.NewCalDAV()
	}

	srv := &dav.Server{
		Backend:  store,
		State:    state,
		Ignore:   dav.NewIgnore(ignorePatterns...),
		Dialects: dav.DefaultDialects,
		CalDAV:   calDAV,
		Logger:   logger,
	}

	if *quotaBytes > 0 {
		ctx := context.Background()
		if err := state.MergeProps(ctx, "/", map[string]string{
			"Z:quota-limit-bytes": strconv.FormatInt(*quotaBytes, 10),
		}); err != nil {
			logger.Errorf("setting root quota: %s", err)
			os.Exit(1)
		}
		logger.Infof("root quota set to %d bytes", *quotaBytes)
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv,
	}

	go func() {
		logger.Infof("davserver listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("listen: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %s", err)
	}
}
