package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultPollInterval = 30 * time.Second

var ErrPollerRunning = errors.New("poller already running")

// Snapshot is what one poll observed. Err is set when either request
// failed; the other field may still be populated.
type Snapshot struct {
	Conversations []*Conversation
	UnreadCount   int64
	At            time.Time
	Err           error
}

// Poller refreshes conversations and the unread count on a fixed interval.
type Poller struct {
	client   *Client
	interval time.Duration
	onUpdate func(Snapshot)

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	inCallback bool
}

func NewPoller(client *Client, interval time.Duration, onUpdate func(Snapshot)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		client:   client,
		interval: interval,
		onUpdate: onUpdate,
	}
}

// Start polls once immediately and then every interval until Stop or ctx
// ends. Once ctx ends the poller can be started again.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrPollerRunning
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(pollCtx, p.done)
	return nil
}

// Stop is idempotent and returns once the loop has exited. While onUpdate
// is running, which is always the case when the callback itself calls Stop,
// it only cancels: the loop exits when the callback returns and no further
// snapshot is delivered.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done, inCallback := p.cancel, p.done, p.inCallback
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if !inCallback {
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	snapshot := Snapshot{At: time.Now()}

	conversations, err := p.client.Conversations(ctx)
	if err != nil {
		snapshot.Err = err
	}
	snapshot.Conversations = conversations

	count, err := p.client.UnreadCount(ctx)
	if err != nil && snapshot.Err == nil {
		snapshot.Err = err
	}
	snapshot.UnreadCount = count

	if ctx.Err() != nil {
		return
	}
	if p.onUpdate == nil {
		return
	}

	p.mu.Lock()
	p.inCallback = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inCallback = false
		p.mu.Unlock()
	}()
	p.onUpdate(snapshot)
}
