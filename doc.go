// Package opsgate provides an approval-gated remote-operations engine.
//
// Destructive or sensitive operations (stopping instances, running remote
// commands) are registered as pending approval requests; nothing executes
// until the original requester confirms. Confirmed operations run through a
// rate limiter and a classification-aware retry executor, and long-running
// commands are polled to completion with per-command backoff. The engine
// comes with pluggable service layers:
//
//   - approval  – TTL-bound registry with single-owner confirmation
//   - tracker   – command polling and multi-target workflow aggregation
//   - limiter   – token bucket plus concurrency gate
//   - retrier   – retry with jittered exponential backoff
//   - gateway   – remote backends (AWS SSM/EC2, shell over SSH)
//
// Opsgate is designed to be embedded in host applications, for example a
// chat-ops bot. End-users typically interact via the Service façade exposed
// by the root package:
//
//	svc := opsgate.New(opsgate.WithGateway(gw))
//	_ = svc.Runtime().Start(ctx)
//	req, _ := svc.RequestOperation(ctx, spec)
//	conf, _ := svc.Confirm(ctx, req.ID, spec.RequesterID)
//
// For more details see the individual sub-packages.
package opsgate
