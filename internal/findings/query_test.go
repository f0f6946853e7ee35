package findings

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func sample() []model.Finding {
	return []model.Finding{
		{ID: 1, EntityName: "Construtora Alfa", Title: "Investigação por fraude", Content: "Operação da PF", RiskLevel: model.RiskHigh, DataColeta: "2024-03-10T08:00:00"},
		{ID: 2, EntityName: "Banco Beta", Title: "Resultado trimestral", Content: "Lucro recorde", RiskLevel: model.RiskLow, DataColeta: "2024-06-01T12:00:00"},
		{ID: 3, EntityName: "Fundo Gama", Title: "Multa da CVM", Content: "Processo administrativo por fraude contábil", RiskLevel: model.RiskMedium, DataColeta: "2024-01-15"},
		{ID: 4, EntityName: "Construtora Alfa", Title: "Novo contrato", Content: "Licitação vencida", RiskLevel: model.RiskLow, DataColeta: "2024-05-20T09:30:00Z"},
		{ID: 5, EntityName: "Pessoa Delta", Title: "Citação em lavagem", Content: "Denúncia do MPF", RiskLevel: model.RiskHigh, DataColeta: "2023-12-01"},
	}
}

func ids(fs []model.Finding) []int64 {
	out := make([]int64, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

func TestApplyIdentityWithoutFilters(t *testing.T) {
	in := sample()
	got, err := Apply(in, Query{Risk: All})
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyRiskFilterPreservesOrder(t *testing.T) {
	for _, level := range model.RiskLevels {
		got, err := Apply(sample(), Query{Risk: RiskFilter(level)})
		require.NoError(t, err)

		var want []int64
		for _, f := range sample() {
			if f.RiskLevel == level {
				want = append(want, f.ID)
			}
		}
		if diff := cmp.Diff(want, ids(got)); diff != "" {
			t.Errorf("risk %s (-want +got):\n%s", level, diff)
		}
	}
}

func TestApplySearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	got, err := Apply(sample(), Query{Search: "FRAUDE", Risk: All})
	require.NoError(t, err)
	// title of 1, content of 3
	assert.Equal(t, []int64{1, 3}, ids(got))

	got, err = Apply(sample(), Query{Search: "alfa", Risk: All})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(got))

	got, err = Apply(sample(), Query{Search: "nada disso", Risk: All})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestApplySearchAndRiskAreConjunctive(t *testing.T) {
	got, err := Apply(sample(), Query{Search: "fraude", Risk: RiskFilter(model.RiskHigh)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestApplySortByDataColeta(t *testing.T) {
	desc, err := Apply(sample(), Query{Risk: All, Sort: Sort{Key: SortDataColeta, Order: Desc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, ids(desc))

	asc, err := Apply(sample(), Query{Risk: All, Sort: Sort{Key: SortDataColeta, Order: Asc}})
	require.NoError(t, err)

	reversed := ids(asc)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	assert.Equal(t, ids(desc), reversed)
}

func TestApplySortComparesInstantsNotStrings(t *testing.T) {
	// Lexically "2024-01-01T10:00:00+05:00" > "2024-01-01T06:00:00Z" but it is earlier.
	fs := []model.Finding{
		{ID: 1, RiskLevel: model.RiskLow, DataColeta: "2024-01-01T06:00:00Z"},
		{ID: 2, RiskLevel: model.RiskLow, DataColeta: "2024-01-01T10:00:00+05:00"},
	}
	got, err := Apply(fs, Query{Sort: Sort{Key: SortDataColeta, Order: Asc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(got))
}

func TestApplySortUnparseableTimestampsFirstAscending(t *testing.T) {
	fs := []model.Finding{
		{ID: 1, DataColeta: "2024-01-01"},
		{ID: 2, DataColeta: "sem data"},
		{ID: 3, DataColeta: "2023-01-01"},
	}
	got, err := Apply(fs, Query{Sort: Sort{Key: SortDataColeta, Order: Asc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(got))
}

func TestApplySortIsStable(t *testing.T) {
	got, err := Apply(sample(), Query{Sort: Sort{Key: SortEntityName, Order: Asc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 4, 3, 5}, ids(got))

	got, err = Apply(sample(), Query{Sort: Sort{Key: SortEntityName, Order: Desc}})
	require.NoError(t, err)
	// equal keys (1 and 4) keep their input order in both directions
	assert.Equal(t, []int64{5, 3, 1, 4, 2}, ids(got))

	got, err = Apply(sample(), Query{Sort: Sort{Key: SortRiskLevel, Order: Asc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5, 2, 4, 3}, ids(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sample()
	before := ids(in)
	_, err := Apply(in, Query{Sort: Sort{Key: SortTitle, Order: Asc}})
	require.NoError(t, err)
	assert.Equal(t, before, ids(in))
}

func TestApplyEmpty(t *testing.T) {
	got, err := Apply(nil, Query{Search: "x", Risk: All, Sort: DefaultSort})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplyRejectsUnknownArguments(t *testing.T) {
	_, err := Apply(sample(), Query{Sort: Sort{Key: "risk_score", Order: Asc}})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = Apply(sample(), Query{Sort: Sort{Key: SortTitle, Order: "sideways"}})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = Apply(sample(), Query{Risk: "CRÍTICO"})
	assert.True(t, errs.IsInvalidArgument(err))
}

func TestScenarioTwoFindings(t *testing.T) {
	fs := []model.Finding{
		{ID: 1, RiskLevel: model.RiskHigh, DataColeta: "2024-01-01"},
		{ID: 2, RiskLevel: model.RiskLow, DataColeta: "2024-06-01"},
	}

	got, err := Apply(fs, Query{Risk: RiskFilter(model.RiskHigh)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))

	got, err = Apply(fs, Query{Risk: All, Sort: Sort{Key: SortDataColeta, Order: Desc}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(got))
}

func TestSortToggle(t *testing.T) {
	s := DefaultSort
	s = s.Toggle(SortDataColeta)
	assert.Equal(t, Sort{Key: SortDataColeta, Order: Asc}, s)
	s = s.Toggle(SortDataColeta)
	assert.Equal(t, Sort{Key: SortDataColeta, Order: Desc}, s)

	s = Sort{Key: SortTitle, Order: Asc}.Toggle(SortEntityName)
	assert.Equal(t, Sort{Key: SortEntityName, Order: Desc}, s)
}

func TestParsers(t *testing.T) {
	key, err := ParseSortKey("Data_Coleta")
	require.NoError(t, err)
	assert.Equal(t, SortDataColeta, key)

	_, err = ParseSortKey("content")
	assert.True(t, errs.IsInvalidArgument(err))

	order, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Desc, order)

	risk, err := ParseRiskFilter("medio")
	require.NoError(t, err)
	assert.Equal(t, RiskFilter(model.RiskMedium), risk)

	risk, err = ParseRiskFilter("")
	require.NoError(t, err)
	assert.Equal(t, All, risk)
}

func TestSummaries(t *testing.T) {
	s := Summarize(sample())
	assert.Equal(t, Stats{Total: 5, High: 2, Medium: 1, Low: 2}, s)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	jobs := []model.ExecutionJob{
		{ID: 1, Status: model.JobCompleted, IniciadoEm: &start, FinalizadoEm: &end},
		{ID: 2, Status: model.JobRunning, IniciadoEm: &start},
		{ID: 3, Status: model.JobFailed},
		{ID: 4, Status: model.JobPending},
	}
	js := SummarizeJobs(jobs)
	assert.Equal(t, JobStats{Total: 4, Pending: 1, Running: 1, Completed: 1, Failed: 1}, js)
	assert.Equal(t, "1m 30s", JobDuration(jobs[0], time.Now()))
	assert.Equal(t, "-", JobDuration(jobs[3], time.Now()))
}
