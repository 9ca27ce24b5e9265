package coordstore

import "testing"

func TestKeys_DomainQualified(t *testing.T) {
	cases := map[string]func() string{
		"hydra:acme:pending":                          func() string { return pendingKey("acme") },
		"hydra:acme:worker_queue:w1":                   func() string { return workerQueueKey("acme", "w1") },
		"hydra:acme:worker:w1":                         func() string { return workerKey("acme", "w1") },
		"hydra:acme:worker_heartbeats":                 func() string { return workerHeartbeatsKey("acme") },
		"hydra:acme:worker_running_set:w1":             func() string { return workerRunningSetKey("acme", "w1") },
		"hydra:acme:job_running:j1":                    func() string { return jobRunningKey("acme", "j1") },
		"hydra:acme:log_stream:r1":                      func() string { return logStreamKey("acme", "r1") },
		"hydra:acme:log_stream:r1:history":              func() string { return logStreamHistoryKey("acme", "r1") },
	}
	for want, fn := range cases {
		if got := fn(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestWorkerIDFromKey(t *testing.T) {
	key := workerKey("acme", "worker-7")
	if got := workerIDFromKey("acme", key); got != "worker-7" {
		t.Errorf("workerIDFromKey() = %q, want worker-7", got)
	}
	if got := workerIDFromKey("acme", "garbage"); got != "" {
		t.Errorf("workerIDFromKey() = %q, want empty for malformed key", got)
	}
}

func TestDomainFromPendingKey(t *testing.T) {
	if got := domainFromPendingKey("hydra:acme:pending"); got != "acme" {
		t.Errorf("domainFromPendingKey() = %q, want acme", got)
	}
}
