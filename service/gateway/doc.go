// Package gateway defines the narrow contracts through which the core
// reaches remote systems: invoking a confirmed action and querying the
// status of a long-running command. Vendor request shaping lives in the
// concrete adapters (awsops, shell), never in the core.
package gateway
