// Package connectivity answers "should a live call be attempted right
// now?" with a best-effort reachability check. One shared ticker drives the
// poll; subscribers are notified on transition edges only.
package connectivity

import (
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	logrus "github.com/sirupsen/logrus"
)

type Probe struct {
	client *resty.Client
	url    string

	mu     sync.Mutex
	online bool
	known  bool
	subs   []chan bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a probe against a known-reachable endpoint. The timeout bounds
// every check; expiry counts as unreachable.
func New(url string, timeout time.Duration) *Probe {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Cache-Control", "no-cache")
	return &Probe{client: client, url: url}
}

// Online returns the cached last-known state. Before the first check the
// probe reports offline, so early writes go to the queue rather than
// failing.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.known && p.online
}

// CheckNow performs one reachability fetch and updates the cached state.
func (p *Probe) CheckNow() bool {
	_, err := p.client.R().Get(p.url)
	online := err == nil
	p.setState(online)
	return online
}

// Subscribe returns a channel that receives the new state on every
// online/offline transition. Slow subscribers miss edges rather than block
// the probe.
func (p *Probe) Subscribe() <-chan bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan bool, 1)
	p.subs = append(p.subs, ch)
	return ch
}

func (p *Probe) setState(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := !p.known || p.online != online
	p.known = true
	p.online = online
	if !changed {
		return
	}

	logrus.WithField("online", online).Info("connectivity changed")
	for _, ch := range p.subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// Start begins periodic polling. One timer serves every subscriber.
func (p *Probe) Start(interval time.Duration) {
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.CheckNow()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.CheckNow()
			case <-p.stopCh:
				return
			}
		}
	}()
}

// Stop halts polling, waits for the poller to exit, and closes every
// subscriber channel so their receive loops terminate.
func (p *Probe) Stop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
	p.stopCh = nil

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}
