package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/asaavedra/printscan/pkg/kv"
	"github.com/asaavedra/printscan/pkg/oids"
	"github.com/asaavedra/printscan/pkg/printers"
	"github.com/asaavedra/printscan/pkg/scanner"
	"github.com/asaavedra/printscan/pkg/sink"
	"github.com/asaavedra/printscan/pkg/snmp/snmptest"
	"github.com/asaavedra/printscan/pkg/store"
	"github.com/asaavedra/printscan/pkg/tasks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingTasks struct {
	mu  sync.Mutex
	fns []tasks.Func
}

func (p *pendingTasks) Submit(_ string, fn tasks.Func) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fns = append(p.fns, fn)
}

func (p *pendingTasks) runAll(t *testing.T) {
	t.Helper()
	for _, fn := range p.fns {
		require.NoError(t, fn(context.Background()))
	}
	p.fns = nil
}

type testEnv struct {
	handler http.Handler
	store   *store.Memory
	fake    *snmptest.Fake
	tasks   *pendingTasks
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: store.NewMemory(),
		fake:  snmptest.NewFake(),
		tasks: &pendingTasks{},
	}

	progress := sink.NewKVSink(kv.NewMemory())
	deps := Deps{
		Printers: printers.NewService(env.store, env.fake, nil, zerolog.Nop()),
		Devices:  env.store,
		Scanner:  scanner.NewScanner(env.fake, progress, env.tasks, nil, zerolog.Nop()),
		Resolver: scanner.NewResolver(env.fake, env.store, zerolog.Nop()),
		Progress: progress,
	}
	env.handler = NewServer(deps, zerolog.Nop()).Handler()
	return env
}

func (env *testEnv) hpAgent(ip, serial string) {
	env.fake.Host(ip).
		Set(oids.SysDescr, `STRING: "HP LaserJet 4250"`).
		Set(oids.SerialNumber, `STRING: "`+serial+`"`).
		Set(oids.SuppliesLevel+".1.1", "INTEGER: 40").
		Set(oids.SuppliesMaxCapacity+".1.1", "INTEGER: 100").
		Set(oids.SuppliesClass+".1.1", "INTEGER: 3").
		Set(oids.SuppliesType+".1.1", "INTEGER: 3").
		Set(oids.SuppliesDescription+".1.1", `STRING: "Black Cartridge"`)
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec.Code, decoded
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", body)
	return data
}

func TestAsyncScanLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.hpAgent("192.168.1.1", "S1")

	code, body := env.do(t, http.MethodPost, "/api/v1/printers/scan", map[string]any{"subnet": "192.168.1.0/30"})
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "ok", body["status"])

	data := dataOf(t, body)
	assert.Equal(t, "queued", data["status"])
	scanID, _ := data["scan_id"].(string)
	require.NotEmpty(t, scanID)

	code, body = env.do(t, http.MethodGet, "/api/v1/printers/scan/"+scanID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", dataOf(t, body)["status"])

	env.tasks.runAll(t)

	code, body = env.do(t, http.MethodGet, "/api/v1/printers/scan/"+scanID, nil)
	require.Equal(t, http.StatusOK, code)
	snapshot := dataOf(t, body)
	assert.Equal(t, "done", snapshot["status"])
	assert.EqualValues(t, 2, snapshot["scanned"])
	assert.EqualValues(t, 2, snapshot["total"])

	detected, ok := snapshot["detected"].([]any)
	require.True(t, ok)
	require.Len(t, detected, 1)
	assert.Equal(t, "hp", detected[0].(map[string]any)["vendor_guess"])
}

func TestScanStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/printers/scan/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, map[string]any{"status": "error", "message": "Scan not found or expired"}, body)
}

func TestScanValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{},
		{"subnet": "192.168.1.0"},
		{"subnet": "192.168.1.0/24", "version": "3"},
		{"subnet": "192.168.1.0/24", "max_hosts": 0},
		{"subnet": "192.168.1.0/24", "max_hosts": 70000},
		{"subnet": "10.0.0.0/16"},
	} {
		code, resp := env.do(t, http.MethodPost, "/api/v1/printers/scan", body)
		assert.Equal(t, http.StatusUnprocessableEntity, code, "%v", body)
		assert.Equal(t, "error", resp["status"])
	}

	assert.Empty(t, env.tasks.fns)
}

func TestSyncScanAndReachable(t *testing.T) {
	env := newTestEnv(t)
	env.hpAgent("192.168.1.2", "S1")

	code, body := env.do(t, http.MethodPost, "/api/v1/printers/scan/sync", map[string]any{"subnet": "192.168.1.0/30"})
	require.Equal(t, http.StatusOK, code)
	result := dataOf(t, body)
	assert.EqualValues(t, 2, result["total_hosts"])
	assert.Len(t, result["found"], 1)

	code, body = env.do(t, http.MethodPost, "/api/v1/printers/scan/sync", map[string]any{"subnet": "192.168.0.0/23"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/snmp/reachable?ip=192.168.1.2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reachable"])
	assert.Equal(t, "HP LaserJet 4250", body["sys_descr"])

	code, body = env.do(t, http.MethodGet, "/api/v1/snmp/reachable?ip=192.168.1.3", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["reachable"])
	assert.Nil(t, body["sys_descr"])

	code, _ = env.do(t, http.MethodGet, "/api/v1/snmp/reachable", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestPrinterLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.hpAgent("10.0.0.5", "PHB1234")

	code, body := env.do(t, http.MethodPost, "/api/v1/printers", map[string]any{"ip": "10.0.0.5", "location": "Sala 2"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["reachable"])
	assert.Nil(t, body["warning"])
	created := dataOf(t, body)
	assert.Equal(t, "hp", created["brand"])
	assert.Equal(t, "PHB1234", created["serial_number"])
	assert.Equal(t, "level_real", created["monitoring_profile"])
	id := int64(created["id"].(float64))

	code, body = env.do(t, http.MethodGet, "/api/v1/printers", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/printers/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Sala 2", dataOf(t, body)["location"])
	assert.EqualValues(t, id, dataOf(t, body)["id"])

	code, body = env.do(t, http.MethodGet, "/api/v1/printers/99", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Printer not found", body["message"])

	code, body = env.do(t, http.MethodGet, "/api/v1/printers/1/snmp/consumables", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["printer_id"])
	consumables := dataOf(t, body)
	assert.Equal(t, "level_real", consumables["mode"])
	assert.Len(t, consumables["data"], 1)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/1/snmp-config", map[string]any{"version": "9"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/printers/1/snmp-config", map[string]any{"community": "lab"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "SNMP config saved", body["message"])
	assert.Equal(t, "lab", dataOf(t, body)["community"])
	assert.Equal(t, "2c", dataOf(t, body)["version"])

	code, body = env.do(t, http.MethodPost, "/api/v1/printers/1/snmp/discover", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, dataOf(t, body)["reachable"])
}

func TestRegisterUnreachableAndValidation(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/printers", map[string]any{"ip": "10.0.0.9"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, false, body["reachable"])
	assert.Equal(t, "SNMP probe failed: snmp unreachable: 10.0.0.9", body["warning"])

	code, body = env.do(t, http.MethodPost, "/api/v1/printers", map[string]any{"ip": "not-an-ip"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "error", body["status"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/printers", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsumablesWithoutConfig(t *testing.T) {
	env := newTestEnv(t)
	p := store.NewPrinter("10.0.0.20")
	require.NoError(t, env.store.Upsert(context.Background(), p))

	code, body := env.do(t, http.MethodGet, "/api/v1/printers/1/snmp/consumables", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, printers.ErrNoConfig.Error(), body["message"])
}

func TestResolveIP(t *testing.T) {
	env := newTestEnv(t)
	serial := "ABC123"
	p := store.NewPrinter("10.0.0.50")
	p.Serial = &serial
	require.NoError(t, env.store.Upsert(context.Background(), p))
	env.hpAgent("192.168.5.2", "abc123")

	code, body := env.do(t, http.MethodPost, "/api/v1/printers/resolve-ip", map[string]any{"subnet": "192.168.5.0/30"})
	require.Equal(t, http.StatusOK, code)
	result := dataOf(t, body)
	assert.EqualValues(t, 1, result["matched"])

	updated, ok := result["updated"].([]any)
	require.True(t, ok)
	require.Len(t, updated, 1)
	assert.Equal(t, "192.168.5.2", updated[0].(map[string]any)["new_ip"])

	got, err := env.store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.5.2", got.IP)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/resolve-ip", map[string]any{"subnet": "192.168.0.0/23"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}
