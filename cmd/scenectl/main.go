package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/chazu/geoscene/pkg/config"
	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/engine"
	"github.com/chazu/geoscene/pkg/scene"
	"github.com/chazu/geoscene/pkg/view"
	"github.com/chazu/geoscene/pkg/wire"
)

const ScenectlVersion = "0.1.0"

const DefaultRendererUrl = "ws://localhost:8765/engine"
const DefaultServeAddr = "localhost:8765"

func main() {
	usage := fmt.Sprintf(
		`Scene tool.

Evaluates scene files and delivers them to a rendering engine.

The default renderer url is %s.

Usage:
    scenectl render <file> [--format=<format>] [--out=<out>] [options]
    scenectl validate <file> [options]
    scenectl push <file> [--url=<url>] [options]
    scenectl serve [--addr=<addr>] [options]
    scenectl -h | --help
    scenectl --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<config>    YAML settings file.
    --format=<format>    Output format: json or proto [default: json].
    --out=<out>          Write the record to a file instead of stdout.
    --url=<url>          Websocket url of the rendering engine.
    --addr=<addr>        Listen address [default: %s].
    --verbosity=<level>  Log verbosity [default: 0].`,
		DefaultRendererUrl,
		DefaultServeAddr,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ScenectlVersion)
	if err != nil {
		panic(err)
	}
	initLogging(opts)
	defer glog.Flush()

	cfg, err := loadConfig(opts)
	if err != nil {
		glog.Exitf("%v", err)
	}

	switch {
	case flagSet(opts, "render"):
		err = render(opts, cfg)
	case flagSet(opts, "validate"):
		err = validate(opts, cfg)
	case flagSet(opts, "push"):
		err = push(opts, cfg)
	case flagSet(opts, "serve"):
		err = serve(opts)
	}
	if err != nil {
		glog.Flush()
		fmt.Fprintf(os.Stderr, "scenectl: %v\n", err)
		os.Exit(1)
	}
}

func flagSet(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

// initLogging routes glog to stderr at the requested verbosity. docopt owns
// the command line, so the glog flags are set directly.
func initLogging(opts docopt.Opts) {
	flag.Set("logtostderr", "true")
	if v, err := opts.String("--verbosity"); err == nil {
		flag.Set("v", v)
	}
	flag.CommandLine.Parse(nil)
}

func loadConfig(opts docopt.Opts) (config.Config, error) {
	path, _ := opts.String("--config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// evaluate reads the scene file named by <file>. Eval errors are printed
// one per line and turned into a single error.
func evaluate(opts docopt.Opts, cfg config.Config) (engine.EvalResult, error) {
	path, _ := opts.String("<file>")
	source, err := os.ReadFile(path)
	if err != nil {
		return engine.EvalResult{}, err
	}

	res, err := engine.NewEngine(cfg.EngineOptions()...).EvaluateAll(string(source))
	if err != nil {
		return res, err
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, e)
		}
		return res, fmt.Errorf("%s: %d evaluation errors", path, len(res.Errors))
	}
	glog.V(1).Infof("%s: %d nodes", path, res.Scene.Len())
	return res, nil
}

func printFindings(res scene.ValidationResult) {
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}
}

func render(opts docopt.Opts, cfg config.Config) error {
	res, err := evaluate(opts, cfg)
	if err != nil {
		return err
	}
	printFindings(res.Validation)

	rec, err := res.Scene.Record(res.Scene.Root())
	if err != nil {
		return err
	}

	var out []byte
	switch format, _ := opts.String("--format"); format {
	case "json":
		b, err := wire.Marshal(rec)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		out = buf.Bytes()
	case "proto":
		if out, err = wire.MarshalProto(rec); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if path, _ := opts.String("--out"); path != "" {
		return os.WriteFile(path, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func validate(opts docopt.Opts, cfg config.Config) error {
	res, err := evaluate(opts, cfg)
	if err != nil {
		return err
	}
	printFindings(res.Validation)
	if !res.Validation.OK() {
		return fmt.Errorf("%d validation errors", len(res.Validation.Errors))
	}
	fmt.Printf("ok: %d nodes, %d warnings\n", res.Scene.Len(), len(res.Validation.Warnings))
	return nil
}

func push(opts docopt.Opts, cfg config.Config) error {
	res, err := evaluate(opts, cfg)
	if err != nil {
		return err
	}
	printFindings(res.Validation)
	if !res.Validation.OK() {
		return fmt.Errorf("refusing to push a scene with %d validation errors", len(res.Validation.Errors))
	}

	url, _ := opts.String("--url")
	if url == "" {
		url = cfg.Dispatch.RendererURL
	}
	if url == "" {
		url = DefaultRendererUrl
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := view.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer r.Close()

	sched := dispatch.New(r, cfg.DispatchOptions()...)
	res.Scene.Attach(sched)
	if err := sched.Drain(ctx); err != nil {
		return err
	}
	fmt.Printf("pushed %d layers to %s\n", len(res.Scene.Get(res.Scene.Root()).Data().(*scene.MapData).Layers), url)
	return nil
}

// serve runs a stand-in rendering engine. It applies engine calls to a
// Mirror and exposes the mirrored layers as JSON.
func serve(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	mirror := view.NewMirror()

	mux := http.NewServeMux()
	mux.Handle("/engine", view.Handler(mirror))
	mux.HandleFunc("/layers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mirror.Layers()); err != nil {
			glog.Warningf("[serve] encode layers: %v", err)
		}
	})
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	glog.Infof("[serve] listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
