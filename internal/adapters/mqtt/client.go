// Package mqtt implements the request/reply broker client used by the CLI.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/louisfellows/canto/pkg/canto"
)

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	TopicBase string
	Timeout   time.Duration
}

// Client publishes commands to nodes and correlates replies by command id.
type Client struct {
	client     paho.Client
	replyTopic string
	topicBase  string
	timeout    time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan canto.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	if opts.TopicBase == "" {
		opts.TopicBase = canto.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	c := &Client{
		replyTopic:    canto.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:     opts.TopicBase,
		timeout:       opts.Timeout,
		replyHandlers: map[string]chan canto.ReplyEnvelope{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.handleReply)
		token.Wait()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	tlsConfig, err := buildTLSConfig(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return c, nil
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes a command and waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, nodeID string, cmd canto.CommandEnvelope) (canto.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return canto.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := make(chan canto.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[cmd.ID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replyHandlers, cmd.ID)
		c.mu.Unlock()
	}()

	topic := canto.TopicCommands(c.topicBase, nodeID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return canto.ReplyEnvelope{}, token.Error()
	}

	select {
	case <-ctx.Done():
		return canto.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(c.timeout):
		return canto.ReplyEnvelope{}, errors.New("timeout waiting for reply")
	}
}

// ListPresence collects retained presence messages from all nodes.
func (c *Client) ListPresence(ctx context.Context) ([]canto.Presence, error) {
	collect := make(map[string]canto.Presence)
	muLock := sync.Mutex{}

	handler := func(_ paho.Client, msg paho.Message) {
		var presence canto.Presence
		if err := json.Unmarshal(msg.Payload(), &presence); err != nil {
			return
		}
		muLock.Lock()
		collect[presence.NodeID] = presence
		muLock.Unlock()
	}

	topic := fmt.Sprintf("%s/node/+/presence", c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	wait := time.NewTimer(250 * time.Millisecond)
	select {
	case <-ctx.Done():
		wait.Stop()
	case <-wait.C:
	}

	muLock.Lock()
	defer muLock.Unlock()
	out := make([]canto.Presence, 0, len(collect))
	for _, presence := range collect {
		out = append(out, presence)
	}
	return out, nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	var reply canto.ReplyEnvelope
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

func buildTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	if caPath == "" && certPath == "" && keyPath == "" {
		return nil, nil
	}

	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
