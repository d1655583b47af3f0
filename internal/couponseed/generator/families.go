package generator

import (
	"fmt"
	"math/rand"
)

// MaxMosCodesPerSubCode is the number of distinct sequence numbers available to one sub-code.
const MaxMosCodesPerSubCode = 1000000

type batchLayout struct {
	dir      string
	fileName func(i int) string
}

func pos12Layout(total int) batchLayout {
	return batchLayout{
		dir:      fmt.Sprintf("coupon_kfc_pos_number-e2e-%d-rows", total),
		fileName: func(i int) string { return fmt.Sprintf("unit_codes_total_%d_%d.csv", total, i) },
	}
}

func gen16Layout(total int) batchLayout {
	return batchLayout{
		dir:      fmt.Sprintf("general_number-e2e-%d-rows", total),
		fileName: func(i int) string { return fmt.Sprintf("codes_%d.csv", i) },
	}
}

func mosLayout(subCode string, total int) batchLayout {
	return batchLayout{
		dir:      fmt.Sprintf("coupon_mos_pos_number-e2e-%s-%d", subCode, total),
		fileName: func(i int) string { return fmt.Sprintf("coupon_mos_%d.csv", i) },
	}
}

func pos12Code(r *rand.Rand) string {
	return fmt.Sprintf("A%013dC", r.Int63n(1e13))
}

func gen16Code(r *rand.Rand) string {
	return fmt.Sprintf("%016d", r.Int63n(1e16))
}

// mosCodes numbers codes sequentially from zero, so repeated batches for a sub-code overlap;
// ingestion drops the duplicates.
func mosCodes(subCode string, count int) []string {
	if count > MaxMosCodesPerSubCode {
		count = MaxMosCodesPerSubCode
	}
	codes := make([]string, count)
	for i := range codes {
		codes[i] = fmt.Sprintf("B%s2%06dB", subCode, i)
	}
	return codes
}
