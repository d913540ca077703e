package billing

import (
	"errors"
	"fmt"
)

// ErrBucketSumMismatch reports a breakdown whose bucket subtotals no longer
// add up to the recorded total. It marks corrupted or hand-edited data, not
// an unsupported plan.
var ErrBucketSumMismatch = errors.New("usage bucket sum mismatch")

// BucketTotals folds a breakdown into per-bucket subtotals keyed by
// component label.
func BucketTotals(res *PlanCostResult) map[string]int64 {
	buckets := make(map[string]int64, len(res.Components))
	for _, c := range res.Components {
		buckets[c.Label] += c.AmountCents
	}
	return buckets
}

// VerifyBucketSum checks recorded bucket subtotals against a result's
// total. A zero-clamped total is reconciled before comparing, since
// clamping is the one adjustment that has no bucket of its own.
func VerifyBucketSum(res *PlanCostResult, buckets map[string]int64) error {
	sum := int64(0)
	for _, v := range buckets {
		sum += v
	}
	if sum < 0 && res.TotalCents == 0 {
		sum = 0
	}
	if sum != res.TotalCents {
		return fmt.Errorf("%w: buckets sum to %d cents, total is %d", ErrBucketSumMismatch, sum, res.TotalCents)
	}
	return nil
}
