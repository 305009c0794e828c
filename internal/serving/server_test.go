// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serving

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"s2lite/internal/authz"
	"s2lite/internal/engine"
	"s2lite/internal/kv/memkv"
)

func newTestServer() (*Server, *http.ServeMux) {
	e := engine.New(memkv.New())
	s := NewServer(e, authz.AllowAll{})
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s, mux
}

func TestPing(t *testing.T) {
	_, mux := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("unexpected ping response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateListGetDeleteBasin(t *testing.T) {
	_, mux := newTestServer()

	body, _ := json.Marshal(map[string]string{"basin": "my-test-basin"})
	req := httptest.NewRequest(http.MethodPost, "/v1/basins", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create basin: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/basins", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var list basinListDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Basins) != 1 || list.Basins[0].Name != "my-test-basin" {
		t.Fatalf("unexpected basin list: %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/basins/my-test-basin", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get basin: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/basins/my-test-basin", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete basin: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateStreamAppendAndReadRoundtrip(t *testing.T) {
	_, mux := newTestServer()

	createBasin := func(name string) {
		body, _ := json.Marshal(map[string]string{"basin": name})
		req := httptest.NewRequest(http.MethodPost, "/v1/basins", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("create basin: %d %s", rec.Code, rec.Body.String())
		}
	}
	createBasin("append-test-basin")

	body, _ := json.Marshal(map[string]string{"stream": "s1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/streams", bytes.NewReader(body))
	req.Header.Set("s2-basin", "append-test-basin")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create stream: %d %s", rec.Code, rec.Body.String())
	}

	appendBody, _ := json.Marshal(appendRequestDTO{
		Records: []recordDTO{{Body: []byte("hello")}},
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/streams/s1/records", bytes.NewReader(appendBody))
	req.Header.Set("s2-basin", "append-test-basin")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("append: %d %s", rec.Code, rec.Body.String())
	}
	var appendResp appendResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &appendResp); err != nil {
		t.Fatalf("decode append response: %v", err)
	}
	if appendResp.EndSeqNum != 1 {
		t.Fatalf("expected end_seq_num=1, got %d", appendResp.EndSeqNum)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/streams/s1/records?start=earliest", nil)
	req.Header.Set("s2-basin", "append-test-basin")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("read: %d %s", rec.Code, rec.Body.String())
	}
	var readResp struct {
		Records []recordDTO `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &readResp); err != nil {
		t.Fatalf("decode read response: %v", err)
	}
	if len(readResp.Records) != 1 || string(readResp.Records[0].Body) != "hello" {
		t.Fatalf("unexpected read response: %+v", readResp)
	}
}

func TestAppendRejectedForUnknownStream(t *testing.T) {
	_, mux := newTestServer()
	body, _ := json.Marshal(map[string]string{"basin": "unknown-stream-basin"})
	req := httptest.NewRequest(http.MethodPost, "/v1/basins", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	appendBody, _ := json.Marshal(appendRequestDTO{Records: []recordDTO{{Body: []byte("x")}}})
	req = httptest.NewRequest(http.MethodPost, "/v1/streams/missing/records", bytes.NewReader(appendBody))
	req.Header.Set("s2-basin", "unknown-stream-basin")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stream, got %d: %s", rec.Code, rec.Body.String())
	}
}
