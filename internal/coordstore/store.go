// Package coordstore is the Redis-backed Coordination Store (§3): pending
// priority queues, per-worker dispatch lists, worker metadata and
// heartbeats, running-job sets, and log pub/sub — everything transient that
// the Dispatcher, Schedule Ticker, Failover Monitor, and Worker Runtime
// coordinate through.
//
// Grounded on itskum47-FluxForge's control_plane/store/redis.go (struct
// wrapping *redis.Client, SCAN-based listing, redis.Nil handling) and on
// original_source/scheduler's redis_client.go call sites for exact key
// shapes and operations.
package coordstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogHistoryCap bounds log_stream(d, run_id).history to the last N chunks
// (§3: "capped list of last N log chunks (N ≈ 400)").
const LogHistoryCap = 400

// LogHistoryTTL matches §4.5 step 4's "capped, TTL ≈ 1 h".
const LogHistoryTTL = time.Hour

var ErrNotFound = errors.New("coordstore: not found")

type Store struct {
	client *redis.Client
}

func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Domains

func (s *Store) AddDomain(ctx context.Context, domain string) error {
	return s.client.SAdd(ctx, domainsKey, domain).Err()
}

func (s *Store) Domains(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, domainsKey).Result()
}

// Pending priority queue (§4.3)

// EnqueuePending adds job_id to pending(d) with score = priority. Re-adding
// an existing member overwrites its score, matching ZADD semantics used by
// requeue paths (§4.3 step 5, §4.4 step 1).
func (s *Store) EnqueuePending(ctx context.Context, domain, jobID string, priority int) error {
	return s.client.ZAdd(ctx, pendingKey(domain), redis.Z{Score: float64(priority), Member: jobID}).Err()
}

// PopMaxPending blocks up to timeout across every domain's pending queue and
// pops with BZPopMax, which takes the highest-priority job of the first
// non-empty key in the order given. Priorities are not compared across
// domains: an earlier domain's low-priority job is popped before a later
// domain's higher-priority one.
func (s *Store) PopMaxPending(ctx context.Context, domains []string, timeout time.Duration) (domain, jobID string, priority int, ok bool, err error) {
	if len(domains) == 0 {
		return "", "", 0, false, nil
	}
	keys := make([]string, len(domains))
	for i, d := range domains {
		keys[i] = pendingKey(d)
	}
	res, err := s.client.BZPopMax(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", 0, false, nil
	}
	if err != nil {
		return "", "", 0, false, fmt.Errorf("bzpopmax pending: %w", err)
	}
	d := domainFromPendingKey(res.Key)
	member, _ := res.Member.(string)
	return d, member, int(res.Score), true, nil
}

// PendingEntry is one member of a domain's pending queue, for the §6
// `GET /queue/overview` endpoint.
type PendingEntry struct {
	JobID    string
	Priority int
}

// CountPending returns the size of a domain's pending queue, for
// `GET /health`'s `pendingJobs` field.
func (s *Store) CountPending(ctx context.Context, domain string) (int64, error) {
	return s.client.ZCard(ctx, pendingKey(domain)).Result()
}

// TopPending returns up to n highest-priority pending jobs with their
// scores, for `GET /queue/overview`.
func (s *Store) TopPending(ctx context.Context, domain string, n int) ([]PendingEntry, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, pendingKey(domain), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange pending: %w", err)
	}
	entries := make([]PendingEntry, 0, len(zs))
	for _, z := range zs {
		jobID, _ := z.Member.(string)
		entries = append(entries, PendingEntry{JobID: jobID, Priority: int(z.Score)})
	}
	return entries, nil
}

func domainFromPendingKey(key string) string {
	// "hydra:{domain}:pending"
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Per-worker queue (§4.3 step 6, §4.5 "Dispatch intake")

func (s *Store) PushWorkerQueue(ctx context.Context, domain, workerID, jobID string) error {
	return s.client.RPush(ctx, workerQueueKey(domain, workerID), jobID).Err()
}

// PopWorkerQueue blocks up to timeout on the worker's FIFO queue.
func (s *Store) PopWorkerQueue(ctx context.Context, domain, workerID string, timeout time.Duration) (jobID string, ok bool, err error) {
	res, err := s.client.BLPop(ctx, timeout, workerQueueKey(domain, workerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("blpop worker queue: %w", err)
	}
	// res is [key, value]
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected blpop reply: %v", res)
	}
	return res[1], true, nil
}

// WorkerRecord is the flat hash shape stored under worker(d, w). List
// fields are comma-joined, mirroring original_source/scheduler/scheduler.py's
// list_online_workers parsing of hgetall.
type WorkerRecord struct {
	WorkerID        string
	Domain          string
	OS              string
	Tags            []string
	AllowedUsers    []string
	Queues          []string
	Host            string
	IP              string
	Subnet          string
	DeploymentType  string
	User            string
	DomainTokenHash string
	MaxConcurrency  int
	CurrentRunning  int
	Status          string
	State           string
}

func (w WorkerRecord) toFields() map[string]any {
	return map[string]any{
		"worker_id":         w.WorkerID,
		"domain":            w.Domain,
		"os":                w.OS,
		"tags":              strings.Join(w.Tags, ","),
		"allowed_users":     strings.Join(w.AllowedUsers, ","),
		"queues":            strings.Join(w.Queues, ","),
		"host":              w.Host,
		"ip":                w.IP,
		"subnet":            w.Subnet,
		"deployment_type":   w.DeploymentType,
		"user":              w.User,
		"domain_token_hash": w.DomainTokenHash,
		"max_concurrency":   w.MaxConcurrency,
		"current_running":   w.CurrentRunning,
		"status":            w.Status,
		"state":             w.State,
	}
}

func workerFromFields(workerID, domain string, m map[string]string) WorkerRecord {
	return WorkerRecord{
		WorkerID:        workerID,
		Domain:          domain,
		OS:              m["os"],
		Tags:            splitCSV(m["tags"]),
		AllowedUsers:    splitCSV(m["allowed_users"]),
		Queues:          splitCSV(m["queues"]),
		Host:            m["host"],
		IP:              m["ip"],
		Subnet:          m["subnet"],
		DeploymentType:  m["deployment_type"],
		User:            m["user"],
		DomainTokenHash: m["domain_token_hash"],
		MaxConcurrency:  atoiDefault(m["max_concurrency"], 1),
		CurrentRunning:  atoiDefault(m["current_running"], 0),
		Status:          m["status"],
		State:           m["state"],
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// UpsertWorker writes worker(d, w) (§4.5 "Registration").
func (s *Store) UpsertWorker(ctx context.Context, w WorkerRecord) error {
	return s.client.HSet(ctx, workerKey(w.Domain, w.WorkerID), w.toFields()).Err()
}

// SetCurrentRunning corrects worker(d, w).current_running to the live
// active-job count (§4.5 heartbeat, §9 "current-running drift").
func (s *Store) SetCurrentRunning(ctx context.Context, domain, workerID string, n int) error {
	return s.client.HSet(ctx, workerKey(domain, workerID), "current_running", n).Err()
}

// IncrCurrentRunning atomically adjusts current_running by delta and
// returns the new value (§4.5 step 2: "returns new value → slot index").
func (s *Store) IncrCurrentRunning(ctx context.Context, domain, workerID string, delta int) (int, error) {
	n, err := s.client.HIncrBy(ctx, workerKey(domain, workerID), "current_running", int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr current_running: %w", err)
	}
	return int(n), nil
}

func (s *Store) SetWorkerStatus(ctx context.Context, domain, workerID, status string) error {
	return s.client.HSet(ctx, workerKey(domain, workerID), "status", status).Err()
}

// SetWorkerState sets the operator-controlled state (online/draining/
// disabled), distinct from Status which reflects heartbeat liveness
// (`POST /workers/{id}/state`, §6).
func (s *Store) SetWorkerState(ctx context.Context, domain, workerID, state string) error {
	return s.client.HSet(ctx, workerKey(domain, workerID), "state", state).Err()
}

func (s *Store) GetWorker(ctx context.Context, domain, workerID string) (WorkerRecord, bool, error) {
	m, err := s.client.HGetAll(ctx, workerKey(domain, workerID)).Result()
	if err != nil {
		return WorkerRecord{}, false, fmt.Errorf("hgetall worker: %w", err)
	}
	if len(m) == 0 {
		return WorkerRecord{}, false, nil
	}
	return workerFromFields(workerID, domain, m), true, nil
}

// ListWorkers scans every worker(d, *) hash in the domain, mirroring the
// original's `r.scan_iter(f"workers:{domain}:*")`.
func (s *Store) ListWorkers(ctx context.Context, domain string) ([]WorkerRecord, error) {
	var workers []WorkerRecord
	iter := s.client.Scan(ctx, 0, workerScanPattern(domain), 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		workerID := workerIDFromKey(domain, key)
		if workerID == "" {
			continue
		}
		m, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("hgetall worker: %w", err)
		}
		workers = append(workers, workerFromFields(workerID, domain, m))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan workers: %w", err)
	}
	return workers, nil
}

// Heartbeats (§4.5 "Heartbeat", §4.4)

func (s *Store) Heartbeat(ctx context.Context, domain, workerID string, at time.Time) error {
	return s.client.ZAdd(ctx, workerHeartbeatsKey(domain), redis.Z{
		Score:  float64(at.Unix()),
		Member: workerID,
	}).Err()
}

func (s *Store) HeartbeatAt(ctx context.Context, domain, workerID string) (time.Time, bool, error) {
	score, err := s.client.ZScore(ctx, workerHeartbeatsKey(domain), workerID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("zscore heartbeat: %w", err)
	}
	return time.Unix(int64(score), 0), true, nil
}

// StaleHeartbeats returns worker IDs in domain whose heartbeat is older
// than cutoff (§4.4 "older than TTL").
func (s *Store) StaleHeartbeats(ctx context.Context, domain string, cutoff time.Time) ([]string, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, workerHeartbeatsKey(domain), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore heartbeats: %w", err)
	}
	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i], _ = z.Member.(string)
	}
	return ids, nil
}

// HeartbeatDomains lists every domain with a worker_heartbeats key, used by
// the Failover Monitor to sweep across tenants (§4.4).
func (s *Store) HeartbeatDomains(ctx context.Context) ([]string, error) {
	var domains []string
	iter := s.client.Scan(ctx, 0, "hydra:*:worker_heartbeats", 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) >= 2 {
			domains = append(domains, parts[1])
		}
	}
	return domains, iter.Err()
}

// Running-job set (§4.5 step 2, §4.4 step 1)

func (s *Store) AddRunningJob(ctx context.Context, domain, workerID, jobID string) error {
	return s.client.SAdd(ctx, workerRunningSetKey(domain, workerID), jobID).Err()
}

func (s *Store) RemoveRunningJob(ctx context.Context, domain, workerID, jobID string) error {
	return s.client.SRem(ctx, workerRunningSetKey(domain, workerID), jobID).Err()
}

func (s *Store) ListRunningJobs(ctx context.Context, domain, workerID string) ([]string, error) {
	return s.client.SMembers(ctx, workerRunningSetKey(domain, workerID)).Result()
}

// job_running(d, j) hash (§3, §4.5 step 2)

func (s *Store) SetJobRunning(ctx context.Context, domain, jobID, workerID, user string, at time.Time) error {
	return s.client.HSet(ctx, jobRunningKey(domain, jobID), map[string]any{
		"worker_id": workerID,
		"heartbeat": at.Unix(),
		"user":      user,
		"domain":    domain,
	}).Err()
}

func (s *Store) DeleteJobRunning(ctx context.Context, domain, jobID string) error {
	return s.client.Del(ctx, jobRunningKey(domain, jobID)).Err()
}

// TokenCacheTTL bounds how long a resolved token_hash -> domain lookup is
// cached, per §6's "direct index on token_hash -> domain, with a
// short-lived cache" so a hot tenant doesn't hit the durable store on
// every request.
const TokenCacheTTL = 30 * time.Second

// CacheDomain caches the domain a token hash resolved to.
func (s *Store) CacheDomain(ctx context.Context, tokenHash, domainName string) error {
	return s.client.Set(ctx, tokenCacheKey(tokenHash), domainName, TokenCacheTTL).Err()
}

// CachedDomain returns the cached domain for a token hash, if present.
func (s *Store) CachedDomain(ctx context.Context, tokenHash string) (string, bool, error) {
	v, err := s.client.Get(ctx, tokenCacheKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached token: %w", err)
	}
	return v, true, nil
}

// LogChunk is the pub/sub envelope §6 defines for the log stream.
type LogChunk struct {
	RunID    string    `json:"runId"`
	JobID    string    `json:"jobId"`
	WorkerID string    `json:"workerId"`
	Domain   string    `json:"domain"`
	TS       time.Time `json:"ts"`
	Stream   string    `json:"stream"` // "stdout" | "stderr"
	Text     string    `json:"text"`
}

// PublishLogChunk appends chunk to the capped history list and publishes it
// on the run's pub/sub channel (§4.5 step 4).
func (s *Store) PublishLogChunk(ctx context.Context, chunk LogChunk) error {
	payload, err := marshalChunk(chunk)
	if err != nil {
		return err
	}

	histKey := logStreamHistoryKey(chunk.Domain, chunk.RunID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, histKey, payload)
	pipe.LTrim(ctx, histKey, -LogHistoryCap, -1)
	pipe.Expire(ctx, histKey, LogHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append log history: %w", err)
	}

	if err := s.client.Publish(ctx, logStreamKey(chunk.Domain, chunk.RunID), payload).Err(); err != nil {
		return fmt.Errorf("publish log chunk: %w", err)
	}
	return nil
}

// LogHistory returns up to LogHistoryCap replayed chunks for a run (§6
// `GET /runs/{id}/stream`: "subscribe ... with replay from history").
func (s *Store) LogHistory(ctx context.Context, domain, runID string) ([]LogChunk, error) {
	raw, err := s.client.LRange(ctx, logStreamHistoryKey(domain, runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange log history: %w", err)
	}
	chunks := make([]LogChunk, 0, len(raw))
	for _, r := range raw {
		c, err := unmarshalChunk(r)
		if err != nil {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// SubscribeLog subscribes to the live channel for a run. Callers should
// read LogHistory first, then range over Channel() for live chunks, per
// the §8 seed scenario "receive history ... then live chunks in order".
func (s *Store) SubscribeLog(ctx context.Context, domain, runID string) *redis.PubSub {
	return s.client.Subscribe(ctx, logStreamKey(domain, runID))
}
