package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key builders for the stable storage namespaces. Tests depend on these
// exact patterns; change them and every persisted deployment breaks.

func MemoryKey(tenant, id string) string {
	return fmt.Sprintf("mindscape:%s:memory:%s", tenant, id)
}

func MemoryPattern(tenant string) string {
	return fmt.Sprintf("mindscape:%s:memory:*", tenant)
}

func StratifyKey(tenant, agent string, layer Layer) string {
	return fmt.Sprintf("stratify:%s:%s:%s", tenant, agent, layer)
}

func SummaryKey(tenant string, layer Layer) string {
	return fmt.Sprintf("summary:%s:%s", tenant, layer)
}

func BeliefKey(tenant, id string) string {
	return fmt.Sprintf("gnosis:%s:belief:%s", tenant, id)
}

func BeliefPattern(tenant string) string {
	return fmt.Sprintf("gnosis:%s:belief:*", tenant)
}

func BeliefVersionKey(tenant, beliefID, versionID string) string {
	return fmt.Sprintf("gnosis:%s:belief:%s:version:%s", tenant, beliefID, versionID)
}

func BeliefVersionPattern(tenant, beliefID string) string {
	return fmt.Sprintf("gnosis:%s:belief:%s:version:*", tenant, beliefID)
}

func LifecycleKey(tenant, beliefID string) string {
	return fmt.Sprintf("lifecycle:%s:%s", tenant, beliefID)
}

func ConfidenceKey(tenant, beliefID string, ts int64) string {
	return fmt.Sprintf("confidence:%s:%s:%d", tenant, beliefID, ts)
}

func ConfidencePattern(tenant, beliefID string) string {
	return fmt.Sprintf("confidence:%s:%s:*", tenant, beliefID)
}

func ContradictionKey(tenant, cid string) string {
	return fmt.Sprintf("contradictions:%s:%s", tenant, cid)
}

func ContradictionPattern(tenant string) string {
	return fmt.Sprintf("contradictions:%s:*", tenant)
}

func AdaptiveKey(tenant, id string) string {
	return fmt.Sprintf("adaptive_memory:%s:%s", tenant, id)
}

func AdaptivePattern(tenant string) string {
	return fmt.Sprintf("adaptive_memory:%s:*", tenant)
}

func AdaptiveConfigKey(tenant, field string) string {
	return fmt.Sprintf("adaptive_config:%s:%s", tenant, field)
}

func JobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

const JobPattern = "job:*"

func AuditKey(tenant string, seq int64) string {
	return fmt.Sprintf("audit:%s:%d", tenant, seq)
}

func TimeIndexKey(tenant, scope string, bucket int64) string {
	return fmt.Sprintf("timeindex:%s:%s:%d", tenant, scope, bucket)
}

// DayBucket is the time index bucket for a unix-second timestamp.
func DayBucket(ts int64) int64 {
	return ts / 86_400
}

// ContradictionID derives a deterministic, order-independent id for a belief
// pair, so indexing the same pair twice in either order is idempotent.
func ContradictionID(beliefA, beliefB string) string {
	a, b := beliefA, beliefB
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "|" + b))
	return hex.EncodeToString(sum[:16])
}
