package textfields

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "DRE Saida"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	require.NoError(t, f.SetCellValue(sheet, "K20", "14,2%"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Banco Exemplo"))
	require.NoError(t, f.SetCellValue(sheet, "C3", "3T25"))
	require.NoError(t, f.SetCellValue(sheet, "D3", "4T25"))
	// Ranged field with a gap: C5, D5 empty, E5.
	require.NoError(t, f.SetCellValue(sheet, "C5", "alpha"))
	require.NoError(t, f.SetCellValue(sheet, "E5", "beta"))
	// VAR_ fallback targets: a literal and a formula without cached result.
	require.NoError(t, f.SetCellValue(sheet, "H2", "+5,0%"))
	require.NoError(t, f.SetCellFormula(sheet, "H3", "=G3-F3"))

	path := filepath.Join(t.TempDir(), "fields.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseConfig_ObjectForm(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"default_sheet": "DRE Saida",
		"fields": {
			"ROE_RECORRENTE": "K20",
			"BANCO": {"sheet": "Capa", "cell": "B2"},
			"PERIODO": {"range": "C3:D3"}
		},
		"llm_fields": ["DESTAQUE_1", "DESTAQUE_2"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "DRE Saida", cfg.DefaultSheet)
	assert.Equal(t, []string{"DESTAQUE_1", "DESTAQUE_2"}, cfg.LLMFields)
	require.Len(t, cfg.Specs, 3)

	byID := map[string]Spec{}
	for _, s := range cfg.Specs {
		byID[s.ID] = s
	}
	assert.Equal(t, Spec{ID: "ROE_RECORRENTE", Range: "K20"}, byID["ROE_RECORRENTE"])
	assert.Equal(t, Spec{ID: "BANCO", Range: "B2", Sheet: "Capa"}, byID["BANCO"])
	assert.Equal(t, Spec{ID: "PERIODO", Range: "C3:D3"}, byID["PERIODO"])
}

func TestParseConfig_FromLLMAlias(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"fields": {"X": "A1"}, "from_llm": ["Y"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, cfg.LLMFields)
}

func TestParseConfig_ListForm(t *testing.T) {
	cfg, err := ParseConfig([]byte(`[
		{"id": "ROE", "sheet": "DRE Saida", "cell": "K20"},
		{"id": "PERIODO", "range": "C3:D3"}
	]`))
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultSheet)
	require.Len(t, cfg.Specs, 2)
	assert.Equal(t, Spec{ID: "ROE", Range: "K20", Sheet: "DRE Saida"}, cfg.Specs[0])
	assert.Equal(t, Spec{ID: "PERIODO", Range: "C3:D3"}, cfg.Specs[1])
}

func TestParseConfig_Invalid(t *testing.T) {
	for _, bad := range []string{
		`"just a string"`,
		`{"no_fields_key": true}`,
		`[{"cell": "A1"}]`,
		`{"fields": {"X": 42}}`,
		`{"fields": {"X": {"sheet": "S"}}}`,
	} {
		_, err := ParseConfig([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidConfig, "config %s", bad)
	}
}

func TestExtract_SingleAndRangedFields(t *testing.T) {
	out, err := ExtractFile(writeFixture(t), []Spec{
		{ID: "ROE_RECORRENTE", Range: "K20"},
		{ID: "BANCO", Range: "B2"},
		{ID: "PERIODO", Range: "C3:D3"},
		{ID: "PARCIAL", Range: "C5:E5"},
		{ID: "VAZIO", Range: "J10:J12"},
	}, "DRE Saida")
	require.NoError(t, err)

	assert.Equal(t, "14,2%", out["ROE_RECORRENTE"])
	assert.Equal(t, "Banco Exemplo", out["BANCO"])
	assert.Equal(t, "3T25, 4T25", out["PERIODO"])
	assert.Equal(t, "alpha, beta", out["PARCIAL"])
	assert.Equal(t, "", out["VAZIO"])
}

func TestExtract_MissingSheet(t *testing.T) {
	_, err := ExtractFile(writeFixture(t), []Spec{{ID: "X", Range: "A1", Sheet: "Nope"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRE Saida")
}

func TestExtract_NoSheetAnywhere(t *testing.T) {
	_, err := ExtractFile(writeFixture(t), []Spec{{ID: "X", Range: "A1"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_sheet")
}

func TestExtractFile_VarFallback(t *testing.T) {
	out, err := ExtractFile(writeFixture(t), []Spec{
		{ID: "VAR_LUCRO", Range: "H2"},
		{ID: "VAR_ROE", Range: "H3"},
	}, "DRE Saida")
	require.NoError(t, err)

	// Literal recovered even though the primary read already found it.
	assert.Equal(t, "+5,0%", out["VAR_LUCRO"])
	// An uncached formula stays empty: nothing here can evaluate it.
	assert.Equal(t, "", out["VAR_ROE"])
}
