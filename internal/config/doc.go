// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A minimal file only needs the realtime origin:
//
//	realtime:
//	  origin: https://cams.example.com
//	  channel: alerts
//	journal:
//	  enabled: true
//	  database:
//	    host: localhost
//	    name: camwatch
//	    user: camwatch
//	    password: ${CAMWATCH_DB_PASSWORD}
package config
