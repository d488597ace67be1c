package index

import "github.com/rat-data/colstore/internal/schema"

// Candidate is one table (primary or an index) considered by SelectTable,
// with the hit ratio that decided it (spec §4.7.4).
type Candidate struct {
	TableName      string
	IsIndex        bool
	FixedPrefixLen int
	PkeySchemaLen  int
	HitRatio       float64
}

// fixedPrefixLength walks defs in schema order and returns how many
// leading columns the condition pins down. A column counts as fixed if
// every source attribute its expression reads is point-fixed ($eq or a
// singleton $in) in cond. A hashed column (Crc64Int/Crc64Str) can only
// ever be point-fixed this way, since any value change flips the hash
// unpredictably. The walk stops at the first column that isn't fully
// point-fixed; if that column reads a single source attribute and the
// condition range-fixes it ($lt/$le/$gt/$ge), it still counts. This is
// the "only the last fixed column may be a range" rule, and no column
// after it can ever be counted.
func fixedPrefixLength(defs []schema.PkeyColDef, cond Condition) int {
	n := 0
	for _, def := range defs {
		attrNames := def.Expr.AttrNames()
		if len(attrNames) == 0 {
			break
		}
		allPoint := true
		for _, a := range attrNames {
			fc, ok := cond.Get(a)
			if !ok || !fc.IsPointFixed() {
				allPoint = false
				break
			}
		}
		if allPoint {
			n++
			continue
		}
		if !def.Expr.IsHashed() && len(attrNames) == 1 {
			if fc, ok := cond.Get(attrNames[0]); ok && fc.IsRangeFixed() {
				n++
			}
		}
		break
	}
	return n
}

// SelectTable picks the table (primary or one of coll's indexes) with the
// highest hit ratio for cond: fixed_prefix_length / pkey_schema_length
// (spec §4.7.4). Ties favor the primary table. A condition that fixes no
// column on any table falls back to the primary table (full scan).
func SelectTable(coll schema.Collection, cond Condition) Candidate {
	best := Candidate{
		TableName:      coll.Primary.Name,
		IsIndex:        false,
		FixedPrefixLen: fixedPrefixLength(coll.PrimaryPkeyDefs, cond),
		PkeySchemaLen:  len(coll.Primary.PkeySchema),
	}
	best.HitRatio = ratio(best.FixedPrefixLen, best.PkeySchemaLen)

	for _, ix := range coll.Indexes {
		c := Candidate{
			TableName:      ix.Table.Name,
			IsIndex:        true,
			FixedPrefixLen: fixedPrefixLength(ix.PkeyDefs, cond),
			PkeySchemaLen:  len(ix.Table.PkeySchema),
		}
		c.HitRatio = ratio(c.FixedPrefixLen, c.PkeySchemaLen)
		if c.HitRatio > best.HitRatio {
			best = c
		}
	}
	return best
}

func ratio(fixed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(fixed) / float64(total)
}
