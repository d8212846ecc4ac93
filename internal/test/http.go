package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/pkg/errors"
)

// ServerResp is a canned response for one path of a fake upstream API.
type ServerResp struct {
	Path       string
	Resp       string
	StatusCode int
}

// Server starts a fake upstream API answering each registered path
// with its canned response.
func Server(resps ...ServerResp) *httptest.Server {
	m := http.NewServeMux()
	for i := range resps {
		sr := resps[i]
		m.HandleFunc(sr.Path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			if sr.StatusCode != 0 {
				w.WriteHeader(sr.StatusCode)
			}

			fmt.Fprintln(w, sr.Resp)
		})
	}

	return httptest.NewServer(m)
}

// ValidateErrMessage decodes an error response body and compares its
// message. Process codes in the body are tolerated but not compared.
func ValidateErrMessage(expectedMsg string, body *bytes.Buffer) error {
	if expectedMsg == "" {
		return nil
	}

	var errResponse struct {
		Error struct {
			Code        string `json:"code"`
			Message     string `json:"message"`
			ProcessCode int    `json:"process_code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&errResponse); err != nil {
		return err
	}

	if errResponse.Error.Message != expectedMsg {
		return errors.Errorf("incorrect error response, want '%s' got '%s'",
			expectedMsg, errResponse.Error.Message)
	}

	return nil
}
