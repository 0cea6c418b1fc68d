package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBareLibraryName(t *testing.T) {
	cfg, err := Parse("dssihost", []string{"synth.so"})
	require.NoError(t, err)
	require.Len(t, cfg.Specs, 1)
	require.Equal(t, "synth.so", cfg.Specs[0].Library)
	require.Equal(t, "", cfg.Specs[0].Label)
	require.Equal(t, 1, cfg.Specs[0].Repetition)
}

func TestParseLabelSuffix(t *testing.T) {
	cfg, err := Parse("dssihost", []string{"synth.so:lead"})
	require.NoError(t, err)
	require.Equal(t, "synth.so", cfg.Specs[0].Library)
	require.Equal(t, "lead", cfg.Specs[0].Label)
}

func TestParseRepetitionPrefix(t *testing.T) {
	cfg, err := Parse("dssihost", []string{"-4", "synth.so:lead"})
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Specs[0].Repetition)
}

func TestParseRepetitionResetsAfterEachSpec(t *testing.T) {
	cfg, err := Parse("dssihost", []string{"-4", "synth.so", "other.so"})
	require.NoError(t, err)
	require.Len(t, cfg.Specs, 2)
	require.Equal(t, 4, cfg.Specs[0].Repetition)
	require.Equal(t, 1, cfg.Specs[1].Repetition)
}

func TestParseRejectsInvalidRepetition(t *testing.T) {
	_, err := Parse("dssihost", []string{"-abc", "synth.so"})
	require.Error(t, err)
}

func TestParseVerboseFlag(t *testing.T) {
	cfg, err := Parse("dssihost", []string{"-v", "synth.so"})
	require.NoError(t, err)
	require.True(t, cfg.Verbose)
}

func TestParseNoArgsWithoutSingleLibrarySpecialCaseFails(t *testing.T) {
	_, err := Parse("dssihost", []string{})
	require.Error(t, err)
}

func TestParseSingleLibrarySpecialCase(t *testing.T) {
	cfg, err := Parse("/usr/lib/dssi/synth.so", []string{})
	require.NoError(t, err)
	require.Len(t, cfg.Specs, 1)
	require.Equal(t, "synth.so", cfg.Specs[0].Library)
}
