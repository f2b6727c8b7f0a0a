package deploy

import (
	"log/slog"
	"net"

	"github.com/miekg/dns"
)

// preflightDNS checks that the target domain resolves before anything
// is deployed behind it. Purely advisory: a failure is a warning, the
// run proceeds either way (split-horizon setups legitimately resolve
// nothing from the host).
func (r *Reconciler) preflightDNS(domain string) {
	resolvConf := r.cfg.ResolvConf
	if resolvConf == "" {
		resolvConf = "/etc/resolv.conf"
	}

	conf, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		r.cfg.Log.Warn("Could not read resolver configuration, skipping DNS preflight", "err", err)
		return
	}

	client := new(dns.Client)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(domain), qtype)
		for _, server := range conf.Servers {
			resp, _, err := client.Exchange(msg, net.JoinHostPort(server, conf.Port))
			if err != nil {
				continue
			}
			if len(resp.Answer) > 0 {
				r.cfg.Log.Debug("Domain resolves",
					slog.String("domain", domain),
					slog.String("type", dns.TypeToString[qtype]))
				return
			}
		}
	}

	r.cfg.Log.Warn("Domain does not currently resolve, clients will not reach the control plane",
		slog.String("domain", domain))
}
