// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// InstitutionType is the closed category set a site is filed under.
type InstitutionType string

const (
	InstitutionHospital          InstitutionType = "Hospital"
	InstitutionUniversity        InstitutionType = "University"
	InstitutionClinic            InstitutionType = "Clinic"
	InstitutionResearchInstitute InstitutionType = "Research Institute"
	InstitutionFoundation        InstitutionType = "Foundation"
	InstitutionPharmacy          InstitutionType = "Pharmacy"
	InstitutionPrivatePractice   InstitutionType = "Private Practice"
	InstitutionOther             InstitutionType = "Other"
)

// institutionKeywords is checked in order; the first category with a keyword
// contained in the lowercased, NFC-composed name wins.
var institutionKeywords = []struct {
	kind     InstitutionType
	keywords []string
}{
	{InstitutionHospital, []string{"hospital", "hôpital", "hospitalier", "krankenhaus", "klinikum", "infirmary"}},
	{InstitutionUniversity, []string{"university", "univ ", "universit", "college", "school of medicine"}},
	{InstitutionClinic, []string{"clinic", "klinik", "clínica"}},
	{InstitutionResearchInstitute, []string{"research institute", "institute", "research center", "research centre", "laboratory"}},
	{InstitutionFoundation, []string{"foundation", "fundación", "stiftung"}},
	{InstitutionPharmacy, []string{"pharmacy", "apotheke", "pharmacie"}},
	{InstitutionPrivatePractice, []string{"private practice", "practice", "associates", "medical group", "physicians"}},
}

// InferInstitutionType maps a facility name to its category by keyword.
// Names matching nothing are InstitutionOther.
func InferInstitutionType(name string) InstitutionType {
	lower := strings.ToLower(norm.NFC.String(name)) + " "
	for _, entry := range institutionKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.kind
			}
		}
	}
	return InstitutionOther
}
