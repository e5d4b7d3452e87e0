package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/classtoken"
	"github.com/trezcool/kazi/core/school"
	"github.com/trezcool/kazi/core/task"
	logsvc "github.com/trezcool/kazi/services/logger"
	dummydb "github.com/trezcool/kazi/storage/database/dummy"
)

func setup(t *testing.T) (*Server, *dummydb.SchoolRepository) {
	t.Cleanup(func() {
		classtoken.NowFunc = time.Now
		task.NowFunc = time.Now
	})

	schoolRepo := dummydb.NewSchoolRepository()
	db := dummydb.NewDB()
	logger := logsvc.NewConsoleLogger(log.New(ioutil.Discard, "", 0))

	server := NewServer(&Options{
		Addr:           ":0",
		DisableReqLogs: true,
		Conf:           &core.Config{Env: "TEST", TestMode: true, AppName: "Kazi"},
		Logger:         logger,
		TokenSvc:       classtoken.NewService(db, dummydb.NewClassTokenRepository(), schoolRepo, logger),
		TaskSvc:        task.NewService(db, dummydb.NewTaskRepository(schoolRepo), schoolRepo, logger),
	})
	return server, schoolRepo
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}, headers ...map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("doRequest() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoHeaderContentType, "application/json")
	if len(headers) > 0 {
		for k, v := range headers[0] {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func seedClass(schoolRepo *dummydb.SchoolRepository) school.Class {
	prd := schoolRepo.CreatePeriod(school.Period{Year: 2025, Semester: "1", PeriodNumber: 2, IsActive: true})
	return schoolRepo.CreateClass(school.Class{ClassNumber: 1, IsActive: true, Period: prd})
}

func Test_classTokenApi_generate(t *testing.T) {
	server, schoolRepo := setup(t)
	cls := seedClass(schoolRepo)
	expiration := time.Now().Add(time.Hour).UTC()

	rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID,
		echoMap{"expiration_date": expiration})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tok classtoken.ClassToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, 1, tok.TokenNumber)
	assert.Regexp(t, `^T01E02-2025-[A-Z0-9]{3}1$`, tok.Token)

	t.Run("active token conflicts", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID,
			echoMap{"expiration_date": expiration})
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("unknown class", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/nope",
			echoMap{"expiration_date": expiration})
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("past expiration date", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID,
			echoMap{"expiration_date": time.Now().Add(-time.Hour).UTC()})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("missing expiration date", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID, echoMap{})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

type echoMap = map[string]interface{}

func Test_classTokenApi_validate(t *testing.T) {
	server, schoolRepo := setup(t)
	cls := seedClass(schoolRepo)

	rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID,
		echoMap{"expiration_date": time.Now().Add(time.Hour).UTC()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tok classtoken.ClassToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	t.Run("valid token resolves the class", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/validate", echoMap{"token": tok.Token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got school.Class
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, cls.ID, got.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/validate", echoMap{"token": "T99E99-1999-ZZZ9"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("invalidated token no longer validates", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodDelete, "/v1/class-tokens/"+tok.Token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = doRequest(t, server, http.MethodPost, "/v1/class-tokens/validate", echoMap{"token": tok.Token})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_classTokenApi_queryActive(t *testing.T) {
	server, schoolRepo := setup(t)
	cls := seedClass(schoolRepo)

	rec := doRequest(t, server, http.MethodPost, "/v1/class-tokens/"+cls.ID,
		echoMap{"expiration_date": time.Now().Add(time.Hour).UTC()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, server, http.MethodGet, "/v1/class-tokens?class_id="+cls.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Len(t, resp.Results, 1)

	t.Run("bad order column", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/class-tokens?order_by=id", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}
