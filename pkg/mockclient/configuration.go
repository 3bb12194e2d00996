package mockclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// AdminConfiguration talks to the admin API of a pact-mock process.
type AdminConfiguration struct {
	client http.Client
	url    string
}

func Configuration(url string) *AdminConfiguration {
	return &AdminConfiguration{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

// StartMockServer registers the contract and starts a mock server for it.
func (conf *AdminConfiguration) StartMockServer(definition Definition) (*MockServer, error) {
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	content, err := json.Marshal(definition)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal definition")
	}

	req, err := http.NewRequest("POST", conf.url+"/mock-servers", bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := conf.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusCreated {
		return nil, errors.Errorf("unable to start mock server: %d %s", res.StatusCode, responseBody)
	}

	var info ServerInfo
	if err := json.Unmarshal(responseBody, &info); err != nil {
		return nil, errors.Wrap(err, "failed to parse mock server info")
	}
	return newMockServer(info, conf), nil
}

// Servers lists the running mock servers.
func (conf *AdminConfiguration) Servers() ([]ServerInfo, error) {
	res, err := conf.client.Get(conf.url + "/mock-servers")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unable to list mock servers: %d", res.StatusCode)
	}

	var infos []ServerInfo
	if err := json.NewDecoder(res.Body).Decode(&infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Reset stops every mock server.
func (conf *AdminConfiguration) Reset() error {
	return conf.delete(conf.url+"/mock-servers", "error resetting mock servers")
}

func (conf *AdminConfiguration) delete(url, failure string) error {
	req, err := http.NewRequest("DELETE", url, nil)
	if err != nil {
		return err
	}

	res, err := conf.client.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("%s: %d", failure, res.StatusCode)
	}
	return nil
}
