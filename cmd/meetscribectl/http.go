package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func doRequest(method, url string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tokenFlag != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFlag)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func doGet(url string) ([]byte, error)                      { return doRequest(http.MethodGet, url, nil) }
func doPostJSON(url string, p interface{}) ([]byte, error)  { return doRequest(http.MethodPost, url, p) }
func doPutJSON(url string, p interface{}) ([]byte, error)   { return doRequest(http.MethodPut, url, p) }
func doPatchJSON(url string, p interface{}) ([]byte, error) { return doRequest(http.MethodPatch, url, p) }
func doDelete(url string) ([]byte, error)                   { return doRequest(http.MethodDelete, url, nil) }
