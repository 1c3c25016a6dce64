// Package awsops adapts the gateway contracts to AWS: instance lifecycle
// operations through EC2 and fleet command execution through SSM, with an
// error classifier aware of AWS throttling, transport and auth failures.
package awsops
