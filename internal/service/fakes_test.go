package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"radiator_control/internal/models"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/protocol"
	"radiator_control/internal/repository"
	"radiator_control/internal/schedule"
)

const testTopic = "test"

var testWire = Wire{Topic: testTopic, Format: protocol.FormatLiteral}

// fakeTransport loops every publish back into a real inbox, like a broker
// would, and lets a responder inject device replies.
type fakeTransport struct {
	mu         sync.Mutex
	inbox      *mqtt.Inbox
	connected  bool
	rewind     bool
	published  []protocol.Message
	respond    func(m protocol.Message) [][]byte
	publishErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbox: mqtt.NewInbox(0), connected: true}
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return mqtt.ErrNotConnected
	}
	if f.publishErr != nil {
		err := f.publishErr
		f.mu.Unlock()
		return err
	}
	msg, err := protocol.Decode(payload)
	if err == nil {
		f.published = append(f.published, msg)
	}
	respond := f.respond
	f.mu.Unlock()

	f.inbox.Append(topic, payload)
	if respond != nil && err == nil {
		for _, r := range respond(msg) {
			f.inbox.Append(topic, r)
		}
	}
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Cursor() uint64 {
	f.mu.Lock()
	rewind := f.rewind
	f.mu.Unlock()
	if rewind {
		return 0
	}
	return f.inbox.Cursor()
}

func (f *fakeTransport) Since(seq uint64) ([]mqtt.Received, uint64) {
	return f.inbox.Since(seq)
}

func (f *fakeTransport) Changed() <-chan struct{} {
	return f.inbox.Changed()
}

func (f *fakeTransport) setRespond(fn func(m protocol.Message) [][]byte) {
	f.mu.Lock()
	f.respond = fn
	f.mu.Unlock()
}

// count returns how many messages with command were sent to device.
func (f *fakeTransport) count(device, command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.published {
		if m.To == device && m.Command == command {
			n++
		}
	}
	return n
}

func (f *fakeTransport) sent() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.published...)
}

func reply(from, command string) []byte {
	b, _ := protocol.Encode(protocol.Message{From: from, To: protocol.ControllerID, Command: command}, protocol.FormatJSON)
	return b
}

// devicesAnswering answers STATE with states[device]; devices missing from
// states stay silent.
func devicesAnswering(states map[string]string) func(m protocol.Message) [][]byte {
	return func(m protocol.Message) [][]byte {
		if !m.IsStateRequest() {
			return nil
		}
		st, ok := states[m.To]
		if !ok {
			return nil
		}
		return [][]byte{reply(m.To, st)}
	}
}

// memEventRepo stores events in memory and records the last filter.
type memEventRepo struct {
	mu        sync.Mutex
	events    []models.DeviceEvent
	appendErr error
	listErr   error
	filters   []repository.EventFilter
}

func (r *memEventRepo) Append(_ context.Context, e models.DeviceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.appendErr
}

func (r *memEventRepo) List(_ context.Context, f repository.EventFilter) ([]models.DeviceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]models.DeviceEvent(nil), r.events...), nil
}

func (r *memEventRepo) ofType(typ string) []models.DeviceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DeviceEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// memDeviceRepo is an in-memory repository.DeviceRepo.
type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]models.Device
	listErr error
}

func newMemDeviceRepo(names ...string) *memDeviceRepo {
	r := &memDeviceRepo{devices: make(map[string]models.Device)}
	for _, n := range names {
		r.devices[n] = models.Device{Name: n, AddedAt: time.Now().UTC()}
	}
	return r
}

func (r *memDeviceRepo) List(context.Context) ([]models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memDeviceRepo) Get(_ context.Context, name string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *memDeviceRepo) Create(_ context.Context, d models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.Name]; ok {
		return repository.ErrConflict
	}
	r.devices[d.Name] = d
	return nil
}

func (r *memDeviceRepo) EnsureAll(_ context.Context, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		if _, ok := r.devices[n]; !ok {
			r.devices[n] = models.Device{Name: n}
		}
	}
	return nil
}

func (r *memDeviceRepo) Rename(_ context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[newName]; ok {
		return repository.ErrConflict
	}
	d, ok := r.devices[oldName]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.devices, oldName)
	d.Name = newName
	r.devices[newName] = d
	return nil
}

func (r *memDeviceRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[name]; !ok {
		return repository.ErrNotFound
	}
	delete(r.devices, name)
	return nil
}

func (r *memDeviceRepo) SetDisabled(_ context.Context, name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[name]
	if !ok {
		return repository.ErrNotFound
	}
	d.Disabled = disabled
	r.devices[name] = d
	return nil
}

// memScheduleRepo holds one Weekly.
type memScheduleRepo struct {
	mu      sync.Mutex
	weekly  schedule.Weekly
	loadErr error
	saves   int
}

func (r *memScheduleRepo) Load(context.Context) (schedule.Weekly, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.weekly == nil {
		return schedule.Empty(), nil
	}
	return r.weekly, nil
}

func (r *memScheduleRepo) Save(_ context.Context, w schedule.Weekly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weekly = w
	r.saves++
	return nil
}

// recordingDispatcher records ApplyMode calls.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []ModeParams
	err   error
}

func (d *recordingDispatcher) ApplyMode(_ context.Context, p ModeParams) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, p)
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string, len(p.Targets))
	for _, t := range p.Targets {
		out[t] = p.Mode
	}
	return out, nil
}

func (d *recordingDispatcher) modes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.Mode)
	}
	return out
}
