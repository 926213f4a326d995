package vk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakeAPI serves VK methods from a map of handlers keyed by method name.
type fakeAPI struct {
	mu      sync.Mutex
	calls   map[string]int
	forms   map[string][]map[string]string
	methods map[string]func(form map[string]string) any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()

	api := &fakeAPI{
		calls:   make(map[string]int),
		forms:   make(map[string][]map[string]string),
		methods: make(map[string]func(map[string]string) any),
	}

	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)

	client := New(zap.NewNop(), Options{GroupID: 7, GroupToken: "group", UserToken: "user"})
	client.APIURL = srv.URL + "/method/"
	client.backoff = 0

	return api, client
}

func (f *fakeAPI) handle(method string, fn func(form map[string]string) any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[method] = fn
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) lastForm(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	forms := f.forms[method]
	if len(forms) == 0 {
		return nil
	}
	return forms[len(forms)-1]
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	method := r.URL.Path[len("/method/"):]
	form := make(map[string]string, len(r.Form))
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.calls[method]++
	f.forms[method] = append(f.forms[method], form)
	fn := f.methods[method]
	f.mu.Unlock()

	if fn == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	_ = json.NewEncoder(w).Encode(fn(form))
}

func ok(response any) map[string]any {
	return map[string]any{"response": response}
}

func apiError(code int, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"error_code": code, "error_msg": msg}}
}
