package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sflowg/blockrunner/runtime"
)

type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxyHTTPS  ProxyType = "https"
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
)

func parseProxyType(s string) (ProxyType, bool) {
	switch t := ProxyType(strings.ToLower(s)); t {
	case ProxyHTTP, ProxyHTTPS, ProxySOCKS4, ProxySOCKS5:
		return t, true
	}
	return "", false
}

// ProxyEntry is one proxy. Address may carry credentials as user:pass@host:port.
type ProxyEntry struct {
	Type    ProxyType
	Address string
}

func (p ProxyEntry) String() string {
	return string(p.Type) + "://" + p.Address
}

// ProxyPool rotates over a fixed proxy list, skipping proxies banned within the
// ban duration. Bans are keyed by the proxy's String form.
type ProxyPool struct {
	proxies     []ProxyEntry
	cursor      atomic.Uint64
	banDuration time.Duration

	mu     sync.Mutex
	banned map[string]time.Time

	now func() time.Time
}

func NewProxyPool(proxies []ProxyEntry, banDuration time.Duration) *ProxyPool {
	return &ProxyPool{
		proxies:     proxies,
		banDuration: banDuration,
		banned:      make(map[string]time.Time),
		now:         time.Now,
	}
}

// Next returns the next proxy that is not banned. When every proxy is banned it
// still returns one rather than stalling the caller; it reports false only for an
// empty pool.
func (p *ProxyPool) Next() (ProxyEntry, bool) {
	n := uint64(len(p.proxies))
	if n == 0 {
		return ProxyEntry{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := uint64(0); i < n; i++ {
		entry := p.proxies[(p.cursor.Add(1)-1)%n]
		if !p.bannedAt(entry.String(), now) {
			return entry, true
		}
	}
	return p.proxies[(p.cursor.Add(1)-1)%n], true
}

// Ban marks a proxy as banned from now. Banning again restarts the ban.
func (p *ProxyPool) Ban(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banned[proxy] = p.now()
}

func (p *ProxyPool) IsBanned(proxy string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bannedAt(proxy, p.now())
}

// bannedAt reports a live ban at now. The caller holds p.mu.
func (p *ProxyPool) bannedAt(proxy string, now time.Time) bool {
	at, ok := p.banned[proxy]
	return ok && now.Sub(at) < p.banDuration
}

// Active counts proxies not under a live ban.
func (p *ProxyPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	live := 0
	for _, at := range p.banned {
		if now.Sub(at) < p.banDuration {
			live++
		}
	}
	return max(len(p.proxies)-live, 0)
}

func (p *ProxyPool) Total() int {
	return len(p.proxies)
}

// ParseProxyLine reads one proxy in any of these forms:
//
//	scheme://[user:pass@]host:port
//	host:port
//	host:port:user:pass
//	TYPE:host:port[:user:pass]
//
// defaultType applies when the line names no scheme; empty means http.
func ParseProxyLine(line, defaultType string) (ProxyEntry, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ProxyEntry{}, fmt.Errorf("empty proxy line")
	}

	typ := ProxyHTTP
	if defaultType != "" {
		t, ok := parseProxyType(defaultType)
		if !ok {
			return ProxyEntry{}, fmt.Errorf("unknown proxy type %q", defaultType)
		}
		typ = t
	}

	if scheme, rest, ok := strings.Cut(line, "://"); ok {
		t, known := parseProxyType(scheme)
		if !known {
			return ProxyEntry{}, fmt.Errorf("unknown proxy scheme %q", scheme)
		}
		if rest == "" {
			return ProxyEntry{}, fmt.Errorf("proxy %q has no address", line)
		}
		return ProxyEntry{Type: t, Address: rest}, nil
	}

	parts := strings.Split(line, ":")
	if t, known := parseProxyType(parts[0]); known && len(parts) >= 3 {
		typ = t
		parts = parts[1:]
	}

	switch len(parts) {
	case 2:
		return ProxyEntry{Type: typ, Address: parts[0] + ":" + parts[1]}, nil
	case 4:
		return ProxyEntry{Type: typ, Address: parts[2] + ":" + parts[3] + "@" + parts[0] + ":" + parts[1]}, nil
	default:
		return ProxyEntry{}, fmt.Errorf("malformed proxy %q", line)
	}
}

// LoadProxies reads one proxy per line. Blank lines and lines starting with '#' are ignored.
func LoadProxies(r io.Reader, defaultType string) ([]ProxyEntry, error) {
	var out []ProxyEntry
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := ParseProxyLine(line, defaultType)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading proxies: %w", err)
	}
	return out, nil
}

// LoadProxySources collects the proxies of every configured source in order.
func LoadProxySources(sources []runtime.ProxySource) ([]ProxyEntry, error) {
	var out []ProxyEntry
	for i, src := range sources {
		entries, err := loadProxySource(src)
		if err != nil {
			return nil, fmt.Errorf("proxy source %d (%s): %w", i, src.Type, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func loadProxySource(src runtime.ProxySource) ([]ProxyEntry, error) {
	if src.Type == "inline" {
		return LoadProxies(strings.NewReader(src.Value), src.DefaultType)
	}

	f, err := os.Open(src.Value)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadProxies(f, src.DefaultType)
}
