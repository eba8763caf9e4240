package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRows(t *testing.T) {
	out := `12345|v6_384|train|alice|RUNNING|1:02:03|2|node[01-02]

12346|debug|eval job|bob|PENDING|0:00|1|(Priority)
garbage line
`
	rows := ParseRows(out)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	want := Snapshot{
		JobID:    "12345",
		Queue:    "v6_384",
		Name:     "train",
		User:     "alice",
		State:    "RUNNING",
		Elapsed:  "1:02:03",
		Nodes:    "2",
		NodeList: "node[01-02]",
	}
	if rows[0] != want {
		t.Errorf("row 0 = %+v, want %+v", rows[0], want)
	}
	if rows[1].Name != "eval job" {
		t.Errorf("expected name with space preserved, got %q", rows[1].Name)
	}
	if rows[1].NodeList != "(Priority)" {
		t.Errorf("expected reason in node list, got %q", rows[1].NodeList)
	}
}

func TestParseRowsEmpty(t *testing.T) {
	if rows := ParseRows(""); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
	if rows := ParseRows("\n  \n"); len(rows) != 0 {
		t.Errorf("expected no rows for whitespace, got %d", len(rows))
	}
}

func TestParseSubmitted(t *testing.T) {
	tests := []struct {
		out     string
		want    JobID
		wantErr bool
	}{
		{out: "Submitted batch job 12345", want: "12345"},
		{out: "Submitted batch job 12345\n", want: "12345"},
		{out: "", wantErr: true},
		{out: "sbatch: error: invalid partition", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSubmitted(tt.out)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSubmitted(%q): expected error", tt.out)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSubmitted(%q): unexpected error %v", tt.out, err)
		}
		if got != tt.want {
			t.Errorf("ParseSubmitted(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

// writeScript creates an executable shell script standing in for a Slurm binary.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestOSClientStatus(t *testing.T) {
	dir := t.TempDir()
	squeue := writeScript(t, dir, "squeue", `echo "12345|v6_384|train|alice|RUNNING|0:10|1|node01"`)

	c := NewClient(squeue, "sbatch", "scancel", dir)

	snap, err := c.Status(context.Background(), "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != "RUNNING" {
		t.Errorf("expected RUNNING, got %s", snap.State)
	}

	if _, err := c.Status(context.Background(), "99999"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestOSClientStatusCommandFailure(t *testing.T) {
	dir := t.TempDir()
	squeue := writeScript(t, dir, "squeue", `echo "slurm_load_jobs error: Invalid job id specified" >&2; exit 1`)

	c := NewClient(squeue, "sbatch", "scancel", dir)

	if _, err := c.Status(context.Background(), "12345"); err == nil {
		t.Error("expected error from failing squeue")
	}
}

func TestOSClientSubmitAndCancel(t *testing.T) {
	dir := t.TempDir()
	sbatch := writeScript(t, dir, "sbatch", `echo "Submitted batch job 4242"`)
	marker := filepath.Join(dir, "cancelled")
	scancel := writeScript(t, dir, "scancel", `echo "$1" > `+marker)

	c := NewClient("squeue", sbatch, scancel, dir)

	id, err := c.Submit(context.Background(), "job.sbatch")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if id != "4242" {
		t.Errorf("expected job 4242, got %s", id)
	}

	if err := c.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("scancel was not invoked: %v", err)
	}
	if string(data) != "4242\n" {
		t.Errorf("scancel got %q", string(data))
	}
}

func TestOSClientIsInstalled(t *testing.T) {
	dir := t.TempDir()
	squeue := writeScript(t, dir, "squeue", "exit 0")

	if !NewClient(squeue, "sbatch", "scancel", dir).IsInstalled() {
		t.Error("expected squeue script to be found")
	}
	if NewClient(filepath.Join(dir, "missing"), "sbatch", "scancel", dir).IsInstalled() {
		t.Error("expected a missing squeue to be reported")
	}
}
