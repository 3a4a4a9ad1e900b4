// The event system is used to propagate events between vertigo instances,
// for example when a guild policy is saved an event gets fired telling the
// other nodes to evict their cached copy.

package pubsub

import (
	"encoding/json"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vielumine/vertigo/common"
)

type Event struct {
	TargetGuild    string // The guild this event was meant for, or * for all
	TargetGuildInt int64
	EventName      string
	Data           interface{}
}

type eventHandler struct {
	evt     string
	handler func(*Event)
}

var logger = common.GetFixedPrefixLogger("pubsub")

var metricsPubsubEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vertigo_pubsub_events_handled_total",
	Help: "Number of pubsub events handled",
}, []string{"event"})

var metricsPubsubSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vertigo_pubsub_events_sent_total",
	Help: "Number of pubsub events sent",
}, []string{"event"})

var metricsPubsubSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vertigo_pubsub_events_skipped_total",
	Help: "Number of pubsub events skipped (unmatched target, unknown evt etc)",
}, []string{"event"})

// PubSub distributes events across nodes over a redis channel. Handlers
// should be added during startup, before PollEvents runs.
type PubSub struct {
	core *common.Core

	eventHandlers []*eventHandler
	handlersMU    sync.RWMutex
	eventTypes    map[string]reflect.Type

	// if set, return true to handle the event, false to ignore it
	FilterFunc func(guildID int64) (handle bool)

	stopped bool
	stopMU  sync.Mutex
	conn    radix.PubSubConn
}

func New(core *common.Core) *PubSub {
	return &PubSub{
		core:       core,
		eventTypes: make(map[string]reflect.Type),
	}
}

// AddHandler adds a handler for the specified event, along with the type the
// event payload decodes into, should only be done during startup.
func (ps *PubSub) AddHandler(evt string, cb func(*Event), t interface{}) {
	ps.handlersMU.Lock()
	defer ps.handlersMU.Unlock()

	handler := &eventHandler{
		evt:     evt,
		handler: cb,
	}

	if t != nil {
		ps.eventTypes[evt] = reflect.TypeOf(t)
	}

	ps.eventHandlers = append(ps.eventHandlers, handler)
	logger.WithField("evt", evt).Debug("Added event handler")
}

// Publish publishes the specified event, set target to -1 to handle on all
// nodes regardless of filtering.
func (ps *PubSub) Publish(evt string, target int64, data interface{}) error {
	dataStr := ""
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		dataStr = string(encoded)
	}

	value := fmt.Sprintf("%d,%s,%s", target, evt, dataStr)
	metricsPubsubSent.With(prometheus.Labels{"event": evt}).Inc()
	return ps.core.RedisPool.Do(radix.Cmd(nil, "PUBLISH", "vertigo_events", value))
}

func (ps *PubSub) PublishLogErr(evt string, target int64, data interface{}) {
	err := ps.Publish(evt, target, data)
	if err != nil {
		logger.WithError(err).WithField("target", target).WithField("evt", evt).Error("failed sending pubsub")
	}
}

// PollEvents subscribes and dispatches events until Stop is called,
// resubscribing if the connection drops.
func (ps *PubSub) PollEvents() {
	for {
		err := ps.runPollEvents()

		ps.stopMU.Lock()
		stopped := ps.stopped
		ps.stopMU.Unlock()
		if stopped {
			return
		}

		logger.WithError(err).Error("subscription for events ended, starting a new one...")
		time.Sleep(time.Second)
	}
}

func (ps *PubSub) Stop() {
	ps.stopMU.Lock()
	defer ps.stopMU.Unlock()

	ps.stopped = true
	if ps.conn != nil {
		ps.conn.Close()
	}
}

func (ps *PubSub) runPollEvents() error {
	logger.Info("Listening for pubsub events")

	conn, err := radix.PersistentPubSubWithOpts("tcp", ps.core.RedisAddr)
	if err != nil {
		return err
	}

	ps.stopMU.Lock()
	if ps.stopped {
		ps.stopMU.Unlock()
		conn.Close()
		return nil
	}
	ps.conn = conn
	ps.stopMU.Unlock()

	msgChan := make(chan radix.PubSubMessage, 100)
	if err := conn.Subscribe(msgChan, "vertigo_events"); err != nil {
		return err
	}

	for msg := range msgChan {
		if len(msg.Message) < 1 {
			continue
		}

		ps.handlersMU.RLock()
		ps.handleEvent(string(msg.Message))
		ps.handlersMU.RUnlock()
	}

	return nil
}

func (ps *PubSub) handleEvent(evt string) {
	split := strings.SplitN(evt, ",", 3)

	if len(split) < 3 {
		logger.WithField("evt", evt).Error("Invalid event")
		return
	}

	target := split[0]
	name := split[1]
	data := split[2]

	parsedTarget, _ := strconv.ParseInt(target, 10, 64)
	if ps.FilterFunc != nil && parsedTarget != -1 {
		if !ps.FilterFunc(parsedTarget) {
			metricsPubsubSkipped.With(prometheus.Labels{"event": name}).Inc()
			return
		}
	}

	t, ok := ps.eventTypes[name]
	if !ok && data != "" {
		// No handler for this event
		logger.WithField("evt", name).Debug("No handler for pubsub event")
		metricsPubsubSkipped.With(prometheus.Labels{"event": name}).Inc()
		return
	}

	var decoded interface{}
	if data != "" && t != nil {
		decoded = reflect.New(t).Interface()
		err := json.Unmarshal([]byte(data), decoded)
		if err != nil {
			logger.WithError(err).Error("Failed unmarshaling event")
			return
		}
	} else if t != nil {
		logger.Error("No data provided for event that requires data")
		return
	}

	event := &Event{
		TargetGuild: target,
		EventName:   name,
		Data:        decoded,
	}

	event.TargetGuildInt = parsedTarget

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			logger.Error("Recovered from panic in pubsub event handler", r, "\n", stack)
		}
	}()

	metricsPubsubEvents.With(prometheus.Labels{"event": name}).Inc()

	for _, handler := range ps.eventHandlers {
		if handler.evt != name {
			continue
		}

		handler.handler(event)
	}
}
