// Command netbird-setup provisions and maintains a self-hosted
// NetBird VPN control plane: a step-ca certificate authority, a Caddy
// reverse proxy, and the NetBird coordination services, orchestrated
// with docker compose.
//
// Subcommands:
//
//	deploy   reconcile secrets, CA state, configuration, and services
//	backup   create a timestamped archive of the restorable state
//	restart  restart all declared services
//	update   pull newer service images and restart
//
// A deploy run is idempotent: existing secrets are never overwritten,
// the CA gains at most one ACME provisioner, and restore decisions
// are made once per run from a single operator-selected backup
// archive.
package main
