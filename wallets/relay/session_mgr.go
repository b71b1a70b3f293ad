package relay

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

type sessionInfo struct {
	*types.ChannelInfo
	name string

	lk       sync.Mutex
	accounts []common.Address
	chainID  uint64
}

func (s *sessionInfo) setState(accounts []common.Address, chainID uint64) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if accounts != nil {
		s.accounts = accounts
	}
	if chainID != 0 {
		s.chainID = chainID
	}
}

func (s *sessionInfo) detail() *SessionDetail {
	s.lk.Lock()
	defer s.lk.Unlock()
	return &SessionDetail{
		ChannelID:  s.ChannelID,
		Topic:      s.Topic,
		Name:       s.name,
		IP:         s.IP,
		Accounts:   append([]common.Address(nil), s.accounts...),
		ChainID:    s.chainID,
		CreateTime: s.CreateTime,
	}
}

type topicWatcher func(ev watchEvent)

// watchEvent tells a relay adapter what happened on its topic. Exactly one
// of Opened, Closed and Session is set.
type watchEvent struct {
	Channel *types.ChannelInfo
	Opened  bool
	Closed  bool
	Session *types.SessionEvent
}

// sessionMgr indexes live sessions by topic, newest last.
type sessionMgr struct {
	lk       sync.Mutex
	topics   map[string][]*sessionInfo
	channels map[uuid.UUID]*sessionInfo
	watchers map[string]map[int]topicWatcher
	nextID   int
}

func newSessionMgr() *sessionMgr {
	return &sessionMgr{
		topics:   make(map[string][]*sessionInfo),
		channels: make(map[uuid.UUID]*sessionInfo),
		watchers: make(map[string]map[int]topicWatcher),
	}
}

func (m *sessionMgr) add(s *sessionInfo) {
	m.lk.Lock()
	m.topics[s.Topic] = append(m.topics[s.Topic], s)
	m.channels[s.ChannelID] = s
	watchers := m.watchersLocked(s.Topic)
	m.lk.Unlock()

	log.Infow("add relay session", "channel", s.ChannelID.String(), "topic", s.Topic, "name", s.name, "ip", s.IP)
	for _, w := range watchers {
		w(watchEvent{Channel: s.ChannelInfo, Opened: true})
	}
}

func (m *sessionMgr) remove(s *sessionInfo) {
	m.lk.Lock()
	sessions := m.topics[s.Topic]
	for i, cur := range sessions {
		if cur == s {
			sessions = append(sessions[:i:i], sessions[i+1:]...)
			break
		}
	}
	if len(sessions) == 0 {
		delete(m.topics, s.Topic)
	} else {
		m.topics[s.Topic] = sessions
	}
	delete(m.channels, s.ChannelID)
	watchers := m.watchersLocked(s.Topic)
	m.lk.Unlock()

	log.Infof("topic %s remove session %s", s.Topic, s.ChannelID)
	for _, w := range watchers {
		w(watchEvent{Channel: s.ChannelInfo, Closed: true})
	}
}

func (m *sessionMgr) get(channelID uuid.UUID) (*sessionInfo, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if s, ok := m.channels[channelID]; ok {
		return s, nil
	}
	return nil, errors.Errorf("no session found for channel %s", channelID)
}

// latest returns the newest live session of topic.
func (m *sessionMgr) latest(topic string) *sessionInfo {
	m.lk.Lock()
	defer m.lk.Unlock()
	sessions := m.topics[topic]
	for i := len(sessions) - 1; i >= 0; i-- {
		if !sessions[i].Closed() {
			return sessions[i]
		}
	}
	return nil
}

func (m *sessionMgr) notify(s *sessionInfo, ev *types.SessionEvent) {
	m.lk.Lock()
	watchers := m.watchersLocked(s.Topic)
	m.lk.Unlock()
	for _, w := range watchers {
		w(watchEvent{Channel: s.ChannelInfo, Session: ev})
	}
}

func (m *sessionMgr) watch(topic string, w topicWatcher) func() {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.watchers[topic] == nil {
		m.watchers[topic] = make(map[int]topicWatcher)
	}
	id := m.nextID
	m.nextID++
	m.watchers[topic][id] = w
	return func() {
		m.lk.Lock()
		defer m.lk.Unlock()
		delete(m.watchers[topic], id)
		if len(m.watchers[topic]) == 0 {
			delete(m.watchers, topic)
		}
	}
}

func (m *sessionMgr) watchersLocked(topic string) []topicWatcher {
	out := make([]topicWatcher, 0, len(m.watchers[topic]))
	for _, w := range m.watchers[topic] {
		out = append(out, w)
	}
	return out
}

func (m *sessionMgr) list() []*SessionDetail {
	m.lk.Lock()
	defer m.lk.Unlock()
	out := make([]*SessionDetail, 0, len(m.channels))
	for _, sessions := range m.topics {
		for _, s := range sessions {
			out = append(out, s.detail())
		}
	}
	return out
}

func (m *sessionMgr) count() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return len(m.channels)
}
