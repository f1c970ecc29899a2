// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	reportHeader = "============================ Statistics Totals ============================"
	reportFooter = "------------------------------ End Statistics -----------------------------"
)

// WriteReport writes r in the fixed statistics report format: a header, a
// tab-terminated row of keys, a tab-terminated row of values with two decimal
// places, the total time, and a footer.
func WriteReport(w io.Writer, r *Results) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(reportHeader)
	bw.WriteByte('\n')
	for _, e := range r.entries {
		bw.WriteString(e.Key)
		bw.WriteByte('\t')
	}
	bw.WriteByte('\n')
	for _, e := range r.entries {
		bw.WriteString(formatValue(e.Value))
		bw.WriteByte('\t')
	}
	bw.WriteByte('\n')
	total, _ := r.Get(KeyTime)
	bw.WriteString("Total time: " + formatValue(total) + " ms\n")
	bw.WriteString(reportFooter)
	bw.WriteByte('\n')
	return bw.Flush()
}

// Render returns the report for r as a string.
func Render(r *Results) string {
	var b strings.Builder
	WriteReport(&b, r)
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
