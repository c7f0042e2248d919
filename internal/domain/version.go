package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version ordering is dotted-numeric, not lexical: "10" > "9", and a version
// with more components wins on an equal prefix ("3.0.0" > "3"). This differs
// from semver, where trailing zero components compare equal, so it is
// implemented directly rather than on a semver library.

// CompareVersions returns -1, 0 or 1 ordering a against b under dotted-numeric
// ordering. Non-numeric components fall back to string comparison.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if c := compareComponent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func compareComponent(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// SortableVersion normalizes a dotted version into a zero-padded form that
// sorts correctly as a string, e.g. "1.10" -> "00001.00010". Non-numeric
// components are kept as-is.
func SortableVersion(version string) string {
	parts := strings.Split(strings.TrimSpace(version), ".")
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			parts[i] = fmt.Sprintf("%05d", n)
		}
	}
	return strings.Join(parts, ".")
}

// HumanVersion reverses SortableVersion, stripping leading zeros back to the
// human-readable form.
func HumanVersion(sortable string) string {
	parts := strings.Split(sortable, ".")
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			parts[i] = strconv.Itoa(n)
		}
	}
	return strings.Join(parts, ".")
}

// AccessionBase strips the version suffix from a transcript accession, e.g.
// "NM_000546.6" -> "NM_000546".
func AccessionBase(accession string) string {
	if i := strings.IndexByte(accession, '.'); i >= 0 {
		return accession[:i]
	}
	return accession
}

// HGNCSuffix strips a leading "HGNC:" prefix, returning the numeric suffix
// used to key the HGMD markname table.
func HGNCSuffix(hgncID string) string {
	return strings.TrimPrefix(strings.TrimSpace(hgncID), "HGNC:")
}
