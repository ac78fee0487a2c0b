package mqtt

import (
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

const (
	subscribeQoS      = 1
	disconnectQuiesce = 250 // milliseconds
)

// Handler receives a message; topic has the Queue prefix removed.
type Handler func(topic string, payload []byte)

// ConnectHandler observes broker connection changes.
type ConnectHandler func(*Queue)

// Queue is a paho client scoped to TopicPrefix. Every topic passed to
// Sub or Pub is relative to the prefix. Filters subscribed locally are
// kept across reconnects and fanned out to all their handlers.
type Queue struct {
	Client       paho.Client
	TopicPrefix  string
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	lock    sync.RWMutex
	filters map[string][]*Subscription
}

// Subscription is one handler registered on a topic filter.
// Token completes when the broker acknowledges the filter; it is a
// DummyToken when the filter was already subscribed or the client is
// offline.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	filter  string
	handler Handler
}

func isWildcard(filter string) bool {
	return strings.Contains(filter, "+") || strings.HasSuffix(filter, "#")
}

// MatchTopic reports whether topic matches the MQTT filter pattern.
// "+" matches one level and a trailing "#" matches the parent level and
// everything below it.
func MatchTopic(topic, pattern string) bool {
	levels, filter := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, f := range filter {
		if f == "#" && i == len(filter)-1 {
			return true
		}
		if i >= len(levels) || (f != "+" && f != levels[i]) {
			return false
		}
	}
	return len(levels) == len(filter)
}

// ClientOptionsFromURL parses a broker URL of the form
// mqtt[s]://user:pass@host:port/prefix/?client-id=id.
// The path, with a trailing "/", is returned as the topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}

	scheme := u.Scheme
	switch scheme {
	case "", "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}

	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return opts, prefix, nil
}

// NewQueue builds the paho client from options. The Queue installs its own
// connect and connection-lost handlers, use OnConnect and OnDisconnect to
// observe those events.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.OnConnectHandler)
	options.SetConnectionLostHandler(q.ConnectionLostHandler)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL is NewQueue with options from ClientOptionsFromURL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, prefix), nil
}

// Connect starts connecting without waiting.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// ConnectWait connects and returns ErrConnectTimeout if the broker has not
// answered within timeout.
func (q *Queue) ConnectWait(timeout time.Duration) error {
	token := q.Connect()
	if !token.WaitTimeout(timeout) {
		return ErrConnectTimeout
	}
	return token.Error()
}

// Close disconnects from the broker.
func (q *Queue) Close() error {
	q.Client.Disconnect(disconnectQuiesce)
	return nil
}

func (q *Queue) online() bool {
	return q.Client != nil && q.Client.IsConnected()
}

// Sub registers handler on filter. Only the first handler of a filter
// subscribes on the broker.
func (q *Queue) Sub(filter string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, filter: filter, handler: handler}
	q.lock.Lock()
	if q.filters == nil {
		q.filters = make(map[string][]*Subscription)
	}
	first := len(q.filters[filter]) == 0
	q.filters[filter] = append(q.filters[filter], sub)
	q.lock.Unlock()

	sub.Token = &paho.DummyToken{}
	if first && q.online() {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+filter)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+filter, subscribeQoS, q.dispatch)
	}
	return sub
}

// Pub publishes payload at QoS 0 without retain.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, 0, false)
}

// PubWith publishes payload under the prefixed topic.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	topic = q.TopicPrefix + topic
	glog.V(3).Infof("PUB %q %d byte(s)", topic, len(payload))
	return q.Client.Publish(topic, qos, retain, payload)
}

// Topics maps every locally subscribed filter, prefixed, to its QoS.
func (q *Queue) Topics() map[string]byte {
	q.lock.RLock()
	defer q.lock.RUnlock()
	topics := make(map[string]byte, len(q.filters))
	for filter := range q.filters {
		topics[q.TopicPrefix+filter] = subscribeQoS
	}
	return topics
}

// Resubscribe sends all local filters to the broker in one request.
func (q *Queue) Resubscribe() paho.Token {
	topics := q.Topics()
	if len(topics) == 0 {
		return &paho.DummyToken{}
	}
	for topic := range topics {
		glog.V(2).Infof("SUB %q", topic)
	}
	return q.Client.SubscribeMultiple(topics, q.dispatch)
}

// OnConnectHandler restores subscriptions and then calls OnConnect.
func (q *Queue) OnConnectHandler(paho.Client) {
	glog.Info("mqtt connected")
	q.Resubscribe()
	if q.OnConnect != nil {
		q.OnConnect(q)
	}
}

// ConnectionLostHandler logs the failure and calls OnDisconnect.
// paho reconnects on its own.
func (q *Queue) ConnectionLostHandler(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
	if q.OnDisconnect != nil {
		q.OnDisconnect(q)
	}
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	q.Dispatch(msg.Topic(), msg.Payload())
}

// Dispatch hands a message to local handlers. topic is the full broker
// topic, messages outside TopicPrefix are ignored. Handlers of the exact
// topic run before wildcard handlers.
func (q *Queue) Dispatch(topic string, payload []byte) {
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	glog.V(2).Infof("RCV %q", topic)
	topic = strings.TrimPrefix(topic, q.TopicPrefix)

	q.lock.RLock()
	var handlers []Handler
	for _, sub := range q.filters[topic] {
		handlers = append(handlers, sub.handler)
	}
	for filter, subs := range q.filters {
		if !isWildcard(filter) || !MatchTopic(topic, filter) {
			continue
		}
		for _, sub := range subs {
			handlers = append(handlers, sub.handler)
		}
	}
	q.lock.RUnlock()

	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close removes the handler. The broker subscription is dropped with the
// last handler of the filter.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	subs := q.filters[s.filter]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.filters, s.filter)
	} else {
		q.filters[s.filter] = subs
	}
	q.lock.Unlock()

	if !last || !q.online() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}
