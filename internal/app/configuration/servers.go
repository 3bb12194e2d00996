package configuration

import (
	"sort"
	"sync"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/form3tech-oss/pact-consumer/internal/app/mockserver"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var servers sync.Map

// stopTimeout bounds how long StopAllServers waits for each worker.
const stopTimeout = 10 * time.Second

type runningServer struct {
	id        string
	url       string
	pact      *contract.Pact
	handle    *mockserver.Handle
	createdAt time.Time
}

// ServerInfo describes a registered mock server.
type ServerInfo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Consumer  string    `json:"consumer"`
	Provider  string    `json:"provider"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *runningServer) info() ServerInfo {
	return ServerInfo{
		ID:        s.id,
		URL:       s.url,
		Consumer:  s.pact.Consumer,
		Provider:  s.pact.Provider,
		State:     s.handle.State().String(),
		CreatedAt: s.createdAt,
	}
}

// StartServer starts a mock server for pact and registers it under a new
// id. It fails if the server does not come up.
func StartServer(pact *contract.Pact, config mockserver.Config) (ServerInfo, error) {
	h := mockserver.Start(pact, config)
	url, err := h.URL()
	if err != nil {
		_ = h.Close()
		return ServerInfo{}, err
	}

	s := &runningServer{
		id:        uuid.NewString(),
		url:       url,
		pact:      pact,
		handle:    h,
		createdAt: time.Now().UTC(),
	}
	servers.Store(s.id, s)
	log.WithFields(log.Fields{"id": s.id, "url": url}).Info("mock server registered")
	return s.info(), nil
}

func loadServer(id string) (*runningServer, bool) {
	s, loaded := servers.Load(id)
	if !loaded {
		return nil, false
	}
	return s.(*runningServer), true
}

// ListServers returns the registered servers, oldest first.
func ListServers() []ServerInfo {
	var infos []ServerInfo
	servers.Range(func(_, value any) bool {
		infos = append(infos, value.(*runningServer).info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// StopServer stops and unregisters one server. It reports whether the id
// was known.
func StopServer(id string) bool {
	s, loaded := servers.LoadAndDelete(id)
	if !loaded {
		return false
	}
	stop(s.(*runningServer))
	return true
}

// StopAllServers stops every registered server and waits for their ports
// to be released.
func StopAllServers() {
	servers.Range(func(key, _ any) bool {
		s, loaded := servers.LoadAndDelete(key)
		if loaded {
			stop(s.(*runningServer))
		}
		return true
	})
}

func stop(s *runningServer) {
	if err := s.handle.Close(); err != nil {
		log.Error(err)
	}
	select {
	case <-s.handle.Done():
	case <-time.After(stopTimeout):
		log.WithField("id", s.id).Warn("mock server did not stop in time")
	}
}
