package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuk00/eco-costa-track/internal/core"
)

func importPath(id string, parts ...string) string {
	return "/api/imports/" + strings.Join(append([]string{id}, parts...), "/")
}

func TestOpenImport(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "extrato.csv", view.FileName)
	assert.Equal(t, core.StateIdle, view.State)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 3, view.Unlinked)
	assert.Equal(t, []core.Lookup{obraA, obraB}, view.CostCenters)
	assert.Equal(t, []core.Lookup{gastoMat}, view.Projects)

	require.Len(t, view.Records, 3)
	first := view.Records[0]
	assert.Equal(t, "2024-01-02", first.Date)
	assert.Equal(t, "-150.75", first.Amount.String())
	assert.Equal(t, "JOAO DA SILVA", first.CounterpartyName)
	require.NotNil(t, first.SuggestedDirection)
	assert.Equal(t, core.Outflow, *first.SuggestedDirection)
	assert.Nil(t, first.Direction)

	rec := f.do(t, tenantA, http.MethodGet, importPath(view.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var again core.SessionView
	decode(t, rec, &again)
	assert.Equal(t, view.ID, again.ID)
}

func TestOpenImportErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantStatus int
		wantCode   string
	}{
		{name: "too few lines", content: "Saldo\n;;;x", wantStatus: http.StatusBadRequest, wantCode: "IMP001"},
		{name: "empty", content: "", wantStatus: http.StatusBadRequest, wantCode: "IMP002"},
		{name: "too large", content: strings.Repeat(testLines[1]+"\n", 100), wantStatus: http.StatusRequestEntityTooLarge, wantCode: "IMP003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.upload(t, tenantA, tt.content)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, rec).Code)
		})
	}
}

func TestOpenImportWithoutFile(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader("not a form"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Empresa-ID", tenantA.String())
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMP005", errorCode(t, rec).Code)
}

func TestImportTenantIsolation(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)

	rec := f.do(t, tenantB, http.MethodGet, importPath(view.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "COM006", errorCode(t, rec).Code)

	rec = f.do(t, tenantB, http.MethodPost, importPath(view.ID, "commit"), map[string]bool{"confirmUnlinked": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRecord(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)

	rec := f.do(t, tenantA, http.MethodPatch, importPath(view.ID, "records", "0"), map[string]any{
		"costCenterId": obraA.ID,
		"direction":    "Saída",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got core.RecordView
	decode(t, rec, &got)
	assert.True(t, got.Linked)
	assert.Equal(t, obraA.ID, *got.CostCenterID)
	assert.Equal(t, core.Outflow, *got.Direction)
	assert.Contains(t, rec.Body.String(), `"direction":"Saída"`)

	rec = f.do(t, tenantA, http.MethodPatch, importPath(view.ID, "records", "0"), map[string]any{
		"clear": []string{"costCenter"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.False(t, got.Linked)
	assert.Nil(t, got.CostCenterID)
	require.NotNil(t, got.Direction, "clearing the cost center leaves the direction")
}

func TestUpdateRecordErrors(t *testing.T) {
	tests := []struct {
		name       string
		index      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "unknown cost center", index: "0", body: map[string]any{"costCenterId": uuid.New()}, wantStatus: http.StatusUnprocessableEntity, wantCode: "COM007"},
		{name: "project of other tenant", index: "0", body: map[string]any{"projectId": uuid.New()}, wantStatus: http.StatusUnprocessableEntity, wantCode: "COM008"},
		{name: "index out of range", index: "7", body: map[string]any{"projectId": gastoMat.ID}, wantStatus: http.StatusNotFound, wantCode: "COM009"},
		{name: "index not a number", index: "first", body: map[string]any{"projectId": gastoMat.ID}, wantStatus: http.StatusNotFound, wantCode: "COM009"},
		{name: "bad direction", index: "0", body: map[string]any{"direction": "sideways"}, wantStatus: http.StatusBadRequest, wantCode: "COM010"},
		{name: "unknown clear field", index: "0", body: map[string]any{"clear": []string{"amount"}}, wantStatus: http.StatusBadRequest, wantCode: "UPL001"},
		{name: "unknown json field", index: "0", body: map[string]any{"amount": "10"}, wantStatus: http.StatusBadRequest, wantCode: "UPL001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			view := f.open(t)

			rec := f.do(t, tenantA, http.MethodPatch, importPath(view.ID, "records", tt.index), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, rec).Code)
		})
	}
}

func TestLinkRecords(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)

	rec := f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{
		"indices":   []int{0, 2},
		"projectId": gastoMat.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got core.SessionView
	decode(t, rec, &got)
	assert.Equal(t, 2, got.Linked)
	assert.Equal(t, 1, got.Unlinked)
	assert.True(t, got.Records[0].Linked)
	assert.False(t, got.Records[1].Linked)
	assert.True(t, got.Records[2].Linked)

	// One bad index rejects the whole batch.
	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{
		"indices":      []int{1, 9},
		"costCenterId": obraB.ID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, tenantA, http.MethodGet, importPath(view.ID), nil)
	decode(t, rec, &got)
	assert.False(t, got.Records[1].Linked)

	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{"projectId": gastoMat.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitFlow(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)
	commitPath := importPath(view.ID, "commit")

	// Nothing linked yet.
	rec := f.do(t, tenantA, http.MethodPost, commitPath, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "COM003", errorCode(t, rec).Code)

	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{
		"indices":      []int{0, 1},
		"costCenterId": obraA.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, tenantA, http.MethodPost, commitPath, map[string]bool{"confirmUnlinked": false})
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := errorCode(t, rec)
	assert.Equal(t, "COM001", resp.Code)
	assert.Equal(t, 1, resp.Unlinked)
	assert.Empty(t, f.store.inserted())

	rec = f.do(t, tenantA, http.MethodPost, commitPath, map[string]bool{"confirmUnlinked": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result core.CommitResult
	decode(t, rec, &result)
	assert.Equal(t, core.StateCommitted, result.State)
	assert.Equal(t, 2, result.Inserted)

	rows := f.store.inserted()
	require.Len(t, rows, 2)
	assert.Equal(t, tenantA, rows[0].TenantID)
	assert.Equal(t, "Importado de CSV - Pix - Enviado", rows[0].Description)
	assert.Equal(t, "2024-01-03", rows[1].Date)

	// Committed sessions linger read-only.
	rec = f.do(t, tenantA, http.MethodGet, importPath(view.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, tenantA, http.MethodPost, commitPath, map[string]bool{"confirmUnlinked": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "COM005", errorCode(t, rec).Code)
}

func TestCommitInvalidDate(t *testing.T) {
	f := newFixture(t, nil)
	content := strings.Join([]string{
		testLines[0],
		testLines[1],
		";;;30/02/2024;;;;1004;870;Pix - Enviado;-5,00;;JOSE",
		testLines[4],
	}, "\n")
	rec := f.upload(t, tenantA, content)
	require.Equal(t, http.StatusCreated, rec.Code)
	var view core.SessionView
	decode(t, rec, &view)

	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{
		"indices":      []int{0, 1},
		"costCenterId": obraA.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "commit"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := errorCode(t, rec)
	assert.Equal(t, "COM002", resp.Code)
	require.NotNil(t, resp.Record)
	assert.Equal(t, 1, *resp.Record)
	assert.Equal(t, "2024-02-30", resp.Value)
	assert.Empty(t, f.store.inserted())
}

func TestCommitStoreFailureKeepsLinks(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)
	f.store.setInsertErr(errors.New(`insert or update on table "custos" violates foreign key constraint "custos_obra_id_fkey"`))

	rec := f.do(t, tenantA, http.MethodPost, importPath(view.ID, "links"), map[string]any{
		"indices":      []int{0, 1, 2},
		"costCenterId": obraA.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "commit"), nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "DB002", errorCode(t, rec).Code)

	rec = f.do(t, tenantA, http.MethodGet, importPath(view.ID), nil)
	var got core.SessionView
	decode(t, rec, &got)
	assert.Equal(t, core.StateIdle, got.State)
	assert.Equal(t, 3, got.Linked)

	f.store.setInsertErr(nil)
	rec = f.do(t, tenantA, http.MethodPost, importPath(view.ID, "commit"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, f.store.inserted(), 3)
}

func TestCancelImport(t *testing.T) {
	f := newFixture(t, nil)
	view := f.open(t)

	rec := f.do(t, tenantA, http.MethodDelete, importPath(view.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cancelled"}`, rec.Body.String())

	rec = f.do(t, tenantA, http.MethodPatch, importPath(view.ID, "records", "0"), map[string]any{"projectId": gastoMat.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTooManySessions(t *testing.T) {
	f := newFixture(t, nil)
	for i := range 10 {
		rec := f.upload(t, tenantA, testStatement())
		require.Equal(t, http.StatusCreated, rec.Code, fmt.Sprintf("upload %d", i))
	}

	rec := f.upload(t, tenantA, testStatement())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "COM011", errorCode(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
