package jobs

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobServer(t *testing.T) (*httptest.Server, *JobStore) {
	t.Helper()
	s := newTestStore(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(s, log))
	t.Cleanup(srv.Close)
	return srv, s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func TestJobsAPI_EnqueueAndGet(t *testing.T) {
	srv, _ := newJobServer(t)

	resp := postJSON(t, srv.URL+"/", enqueueRequest{
		Identifier: "10.48321/D1AAA",
		Harvester:  "datacite",
		Works:      sampleWorks(),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job AugmentJob
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	resp.Body.Close()
	assert.Equal(t, JobStateQueued, job.State)

	resp, err := http.Get(srv.URL + "/" + job.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got AugmentJob
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "10.48321/D1AAA", got.Identifier)
}

func TestJobsAPI_EnqueueValidation(t *testing.T) {
	srv, _ := newJobServer(t)

	resp := postJSON(t, srv.URL+"/", enqueueRequest{Harvester: "datacite", Works: sampleWorks()})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := postJSON(t, srv.URL+"/", enqueueRequest{Identifier: "10.48321/D1AAA"})
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestJobsAPI_GetMissing(t *testing.T) {
	srv, _ := newJobServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobsAPI_ListAndCancel(t *testing.T) {
	srv, s := newJobServer(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/?state=queued")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out listResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, 1, out.TotalSize)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/"+job.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateCanceled, got.State)
}
