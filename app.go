package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/chazu/geoscene/pkg/config"
	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/engine"
	"github.com/chazu/geoscene/pkg/scene"
	"github.com/chazu/geoscene/pkg/view"
	"github.com/chazu/geoscene/pkg/wire"
)

// Frontend event names. Payloads are view.Envelope values.
const (
	eventUpdate = "scene:update"
	eventRemove = "scene:remove"
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	cfg    config.Config
	engine *engine.Engine

	// renderer receives engine calls; startup defaults it to the Wails
	// event bridge.
	renderer dispatch.Renderer
	sched    *dispatch.Scheduler

	mu    sync.Mutex
	scene *scene.Scene
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Scene    json.RawMessage `json:"scene,omitempty"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates a new App with default settings.
func NewApp() *App {
	return NewAppWithConfig(config.Default())
}

// NewAppWithConfig creates a new App from cfg.
func NewAppWithConfig(cfg config.Config) *App {
	return &App{
		cfg:    cfg,
		engine: engine.NewEngine(cfg.EngineOptions()...),
	}
}

// startup is called by Wails on app startup. Scenes evaluated after this
// point are pushed to the frontend.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if a.renderer == nil {
		a.renderer = eventRenderer{ctx: ctx}
	}
	a.sched = dispatch.New(a.renderer, a.cfg.DispatchOptions()...)
}

// shutdown waits briefly for in-flight updates.
func (a *App) shutdown(ctx context.Context) {
	if a.sched == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.sched.Drain(ctx); err != nil {
		glog.Warningf("[app] shutdown: %v", err)
	}
}

// Evaluate takes DSL source and returns the scene record + errors.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the source into a scene and validate it.
	res, err := a.engine.EvaluateAll(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		glog.Errorf("[app] evaluate: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 3: Validation findings. Errors keep the scene off the engine.
	for _, v := range res.Validation.Errors {
		result.Errors = append(result.Errors, validationData(v))
	}
	for _, v := range res.Validation.Warnings {
		result.Warnings = append(result.Warnings, validationData(v))
	}

	// Step 4: Encode the whole map for the frontend.
	rec, err := res.Scene.Record(res.Scene.Root())
	if err == nil {
		result.Scene, err = wire.Marshal(rec)
	}
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: "encoding failed: " + err.Error()})
		return result
	}

	if len(result.Errors) == 0 {
		a.present(res.Scene)
	}
	return result
}

func validationData(v scene.ValidationError) EvalErrorData {
	return EvalErrorData{Node: v.NodeID.String(), Message: v.Error()}
}

// present replaces the scene shown by the engine with s. The old layers are
// removed and drained before s is attached, since the two scenes use
// different queues.
func (a *App) present(s *scene.Scene) {
	if a.sched == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if old := a.scene; old != nil {
		old.Detach()
		if rec, err := old.Record(old.Root()); err == nil {
			key := old.Root().String()
			for i := len(rec.(wire.MapRecord).Layers) - 1; i >= 0; i-- {
				a.sched.Enqueue(key, dispatch.Op{Kind: dispatch.OpRemove, Target: key, Index: i, ContainerIndex: -1})
			}
		}
	}
	if err := a.sched.Drain(a.ctx); err != nil {
		glog.Warningf("[app] clearing previous scene: %v", err)
	}

	a.scene = s
	s.Attach(a.sched)
	glog.Infof("[app] presenting scene with %d nodes", s.Len())
}

// eventRenderer forwards engine calls to the frontend as Wails events.
type eventRenderer struct {
	ctx context.Context
}

func (r eventRenderer) UpdateComponent(ctx context.Context, index, containerIndex int, rec wire.Record) error {
	b, err := wire.Marshal(rec)
	if err != nil {
		return err
	}
	runtime.EventsEmit(r.ctx, eventUpdate, view.Envelope{
		Op:             dispatch.OpUpdate.String(),
		Index:          index,
		ContainerIndex: containerIndex,
		Record:         b,
	})
	return nil
}

func (r eventRenderer) RemoveComponent(ctx context.Context, index, containerIndex int) error {
	runtime.EventsEmit(r.ctx, eventRemove, view.Envelope{
		Op:             dispatch.OpRemove.String(),
		Index:          index,
		ContainerIndex: containerIndex,
	})
	return nil
}
