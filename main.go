package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/repl"
	"github.com/antibyte/retrocalc/pkg/shared"
	"github.com/antibyte/retrocalc/pkg/terminal"
	tlsmanager "github.com/antibyte/retrocalc/pkg/tls"
	"github.com/antibyte/retrocalc/pkg/transcript"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "configuration file")
	serve := flag.Bool("serve", false, "serve calculator sessions over websockets instead of reading stdin")
	transcriptPath := flag.String("transcript", "", "journal statements to this SQLite file (overrides [Transcript])")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for [Authentication] password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	if err := setup(*configPath, *serve || explicitConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	store, err := openTranscript(*transcriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening transcript: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *serve {
		err = runServer(store)
	} else {
		err = runREPL(store)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and logging. A plain REPL run without a
// configuration file uses the built-in defaults and does not log, so an
// interactive calculator leaves no files behind.
func setup(configPath string, needFile bool) error {
	if !needFile {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configuration.UseDefaults()
			logger.SetGlobal(nil)
			return nil
		}
	}

	if err := configuration.Initialize(configPath); err != nil {
		return fmt.Errorf("initializing configuration: %w", err)
	}
	if err := logger.Initialize(); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger.ConfigInfo("Configuration loaded from: %s", configPath)
	return nil
}

// openTranscript opens the journal if a path was given or [Transcript]
// enabled is set. It returns a nil store otherwise.
func openTranscript(path string) (*transcript.Store, error) {
	if path == "" {
		if !configuration.GetBool("Transcript", "enabled", false) {
			return nil, nil
		}
		path = configuration.GetString("Transcript", "db_path", "transcript.db")
	}
	return transcript.Open(path)
}

func runREPL(store *transcript.Store) error {
	opts := repl.OptionsFromConfig()
	if store != nil {
		rec := store.ForSession(uuid.New().String())
		opts.Recorder = rec
		logger.Info(logger.AreaTranscript, "Recording REPL session %s", rec.SessionID())
	}
	return repl.Run(os.Stdin, os.Stdout, calc.NewSession(), opts)
}

func runServer(store *transcript.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var banner *shared.Banner
	if path := configuration.GetString("Server", "banner_file", ""); path != "" {
		b, err := shared.LoadBanner(path)
		if err != nil {
			return err
		}
		banner = b
	}

	handler := terminal.NewTerminalHandler(store, banner)
	go handler.RunIdleSweeper(ctx)
	if store != nil {
		go pruneTranscript(ctx, store)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/session", auth.HandleCreateSession)
	mux.HandleFunc("/api/auth/validate", auth.HandleTokenValidation)
	mux.HandleFunc("/api/auth/logout", auth.HandleLogout)
	mux.HandleFunc("/api/transcript", auth.RequireSessionToken(handler.HandleTranscript))
	mux.HandleFunc("/ws", handler.HandleWebSocket)

	tlsManager, err := tlsmanager.NewTLSManager()
	if err != nil {
		return err
	}

	listen := configuration.GetString("Server", "listen_address", "")
	var servers []*http.Server
	errorChan := make(chan error, 2)

	start := func(srv *http.Server, useTLS bool) {
		servers = append(servers, srv)
		go func() {
			var err error
			if useTLS {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errorChan <- fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
		}()
	}

	if tlsManager.IsEnabled() {
		addr := listen + ":" + tlsManager.GetHTTPSPort()
		logger.Info(logger.AreaSecurity, "Starting HTTPS server on %s", addr)
		start(&http.Server{Addr: addr, Handler: mux, TLSConfig: tlsManager.GetTLSConfig()}, true)

		if tlsManager.NeedsHTTPServer() {
			httpAddr := listen + ":" + tlsManager.GetHTTPPort()
			logger.Info(logger.AreaSecurity, "Starting HTTP helper server on %s", httpAddr)
			start(&http.Server{Addr: httpAddr, Handler: tlsManager.GetHTTPHandler()}, false)
		}
	} else {
		addr := listen + ":" + tlsManager.GetHTTPPort()
		logger.Info(logger.AreaGeneral, "Starting HTTP server on %s", addr)
		start(&http.Server{Addr: addr, Handler: mux}, false)
	}

	select {
	case err = <-errorChan:
		logger.Error(logger.AreaGeneral, "Server failed: %v", err)
	case <-ctx.Done():
		logger.Info(logger.AreaGeneral, "Shutting down")
	}

	handler.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}
	return err
}

// pruneTranscript deletes journal entries older than [Transcript] retention
// once an hour.
func pruneTranscript(ctx context.Context, store *transcript.Store) {
	retention := configuration.GetDuration("Transcript", "retention", 30*24*time.Hour)
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if _, err := store.Prune(ctx, retention); err != nil && ctx.Err() == nil {
			logger.Warn(logger.AreaTranscript, "Pruning transcript failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
