// Package config loads agentbus configuration from YAML or JSON.
//
// Files are decoded over Default, so only the values that differ need to
// be written:
//
//	correlation:
//	  format: "wf-[0-9a-f]{8}"
//	  strict_order: true
//	  issue_store: ./issues.db
//	  tracker:
//	    enabled: true
//	observability:
//	  log_level: debug
//	  log_format: json
//	  metrics: true
package config
