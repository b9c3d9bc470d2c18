package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/domains"
)

// DnsmasqHost mirrors installed rules into a dnsmasq config so devices that
// do not route through the browser are blocked too. The wrapped host stays
// authoritative; mirror failures are logged and never undo an update.
type DnsmasqHost struct {
	Host

	confPath  string
	reloadCmd []string
	exec      Executor
	logger    diaglog.Logger

	lastContent string
}

// NewDnsmasqHost decorates primary. An empty reloadCmd skips the reload.
func NewDnsmasqHost(primary Host, confPath, reloadCmd string, exec Executor, logger diaglog.Logger) (*DnsmasqHost, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary host is required")
	}
	if strings.TrimSpace(confPath) == "" {
		return nil, fmt.Errorf("dnsmasq conf path is required")
	}
	if exec == nil {
		exec = osExec{}
	}
	return &DnsmasqHost{
		Host:      primary,
		confPath:  confPath,
		reloadCmd: strings.Fields(reloadCmd),
		exec:      exec,
		logger:    diaglog.OrDiscard(logger),
	}, nil
}

func (h *DnsmasqHost) UpdateDynamicRules(ctx context.Context, removeIDs []int, add []Rule) error {
	if err := h.Host.UpdateDynamicRules(ctx, removeIDs, add); err != nil {
		return err
	}
	if err := h.Sync(ctx); err != nil {
		h.logger.Warnf("rules: dnsmasq mirror failed: %v", err)
	}
	return nil
}

// Sync rewrites the dnsmasq config from the primary host's rules and
// reloads dnsmasq when the content changed.
func (h *DnsmasqHost) Sync(ctx context.Context) error {
	installed, err := h.Host.DynamicRules(ctx)
	if err != nil {
		return err
	}
	content := GenerateDnsmasqConf(installed)
	if content == h.lastContent {
		return nil
	}
	if err := writeFileAtomic(h.confPath, content); err != nil {
		return fmt.Errorf("write %s: %w", h.confPath, err)
	}
	h.lastContent = content
	if len(h.reloadCmd) == 0 {
		return nil
	}
	if err := h.exec.Run(h.reloadCmd[0], h.reloadCmd[1:]...); err != nil {
		return fmt.Errorf("reload dnsmasq: %w", err)
	}
	return nil
}

// GenerateDnsmasqConf renders one NXDOMAIN entry per distinct rule domain.
// Patterns without an extractable domain are skipped.
func GenerateDnsmasqConf(installed []Rule) string {
	seen := make(map[string]struct{}, len(installed))
	for _, rule := range installed {
		domain := domains.Extract(rule.Pattern())
		if domain == "" {
			continue
		}
		seen[domain] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for domain := range seen {
		names = append(names, domain)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Managed by focusblocks. Do not edit.\n")
	for _, domain := range names {
		b.WriteString("address=/")
		b.WriteString(domain)
		b.WriteString("/\n")
	}
	return b.String()
}

func writeFileAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
