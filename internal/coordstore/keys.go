package coordstore

import "fmt"

// Key helpers implement the §3 "Container layout in coordination store
// (normative)" naming, domain-qualified throughout per the §9 open-question
// decision (never the domain-omitting form the original occasionally used).

const domainsKey = "hydra:domains"

func pendingKey(domain string) string {
	return fmt.Sprintf("hydra:%s:pending", domain)
}

func workerQueueKey(domain, workerID string) string {
	return fmt.Sprintf("hydra:%s:worker_queue:%s", domain, workerID)
}

func workerKey(domain, workerID string) string {
	return fmt.Sprintf("hydra:%s:worker:%s", domain, workerID)
}

func workerScanPattern(domain string) string {
	return fmt.Sprintf("hydra:%s:worker:*", domain)
}

func workerHeartbeatsKey(domain string) string {
	return fmt.Sprintf("hydra:%s:worker_heartbeats", domain)
}

func workerRunningSetKey(domain, workerID string) string {
	return fmt.Sprintf("hydra:%s:worker_running_set:%s", domain, workerID)
}

func jobRunningKey(domain, jobID string) string {
	return fmt.Sprintf("hydra:%s:job_running:%s", domain, jobID)
}

func logStreamKey(domain, runID string) string {
	return fmt.Sprintf("hydra:%s:log_stream:%s", domain, runID)
}

func logStreamHistoryKey(domain, runID string) string {
	return fmt.Sprintf("hydra:%s:log_stream:%s:history", domain, runID)
}

func tokenCacheKey(tokenHash string) string {
	return fmt.Sprintf("hydra:token_cache:%s", tokenHash)
}

func workerIDFromKey(domain, key string) string {
	prefix := fmt.Sprintf("hydra:%s:worker:", domain)
	if len(key) <= len(prefix) {
		return ""
	}
	return key[len(prefix):]
}
