package budgetlock

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{CostCenterName: "CC01", Region: "North", Company: "Alpha", ProfitCenter: "PC1", Submitted: true},
		{CostCenterName: "CC02", Region: "North", Company: "Alpha", ProfitCenter: "PC2"},
		{CostCenterName: "CC03", Region: "South", Company: "Beta", ProfitCenter: "PC9", Submitted: true, UnlockRequested: true},
		{CostCenterName: "CC04", Region: "North", Company: "Gamma", ProfitCenter: "PC5", Submitted: true},
	}
}

func names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.CostCenterName)
	}
	return out
}

func TestFilterDefaultsToSubmitted(t *testing.T) {
	f := FilterFromQuery(url.Values{})
	assert.Equal(t, ViewSubmitted, f.Status)
	assert.Equal(t, []string{"CC01", "CC03", "CC04"}, names(f.Apply(sampleRecords())))
}

func TestFilterCombinesFields(t *testing.T) {
	f := Filter{Region: "North", Status: ViewAll}
	assert.Equal(t, []string{"CC01", "CC02", "CC04"}, names(f.Apply(sampleRecords())))

	f = Filter{Region: "North", Company: "Alpha", Status: ViewNotSubmitted}
	assert.Equal(t, []string{"CC02"}, names(f.Apply(sampleRecords())))

	f = Filter{CostCenter: "CC03", Status: ViewSubmitted}
	assert.Equal(t, []string{"CC03"}, names(f.Apply(sampleRecords())))
}

func TestFilterQueryRoundTrip(t *testing.T) {
	f := Filter{Region: "North", ProfitCenter: "PC1", Status: ViewAll}
	assert.Equal(t, f, FilterFromQuery(f.Query()))
}

func TestFilterOptionsCascade(t *testing.T) {
	opts := FilterOptions(sampleRecords(), Filter{Region: "North"})
	assert.Equal(t, []string{"North", "South"}, opts.Regions)
	assert.Equal(t, []string{"Alpha", "Gamma"}, opts.Companies)
	assert.Equal(t, []string{"PC1", "PC2", "PC5"}, opts.ProfitCenters)
	assert.Equal(t, []string{"CC01", "CC02", "CC04"}, opts.CostCenters)
}

func TestPaginate(t *testing.T) {
	var rows []Record
	for i := 0; i < 25; i++ {
		rows = append(rows, Record{CostCenterName: fmt.Sprintf("CC%02d", i)})
	}
	page := Paginate(rows, 3, 10)
	require.Len(t, page.Rows, 5)
	assert.Equal(t, "CC20", page.Rows[0].CostCenterName)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	page = Paginate(rows, 1, 33)
	assert.Len(t, page.Rows, 10)

	page = Paginate(nil, 1, 10)
	assert.Empty(t, page.Rows)
}

func TestParseBulkAction(t *testing.T) {
	a, err := ParseBulkAction("Approve-Unlock")
	require.NoError(t, err)
	assert.Equal(t, BulkApproveUnlock, a)
	_, err = ParseBulkAction("delete")
	require.Error(t, err)
}
