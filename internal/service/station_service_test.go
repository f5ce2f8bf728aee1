package service

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specimen-imaging/labelstation/internal/capture"
	"github.com/specimen-imaging/labelstation/internal/config"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/metadata"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/internal/session"
	"github.com/specimen-imaging/labelstation/internal/stream"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

type fakeSlots struct {
	running  map[models.SlotRole]string
	shutdown bool
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{running: make(map[models.SlotRole]string)}
}

func (f *fakeSlots) Start(ctx context.Context, role models.SlotRole, deviceID string) error {
	if _, ok := f.running[role]; ok {
		return apperrors.SlotAlreadyRunning(string(role))
	}
	if f.running[role.Other()] == deviceID {
		return apperrors.CameraInUse(deviceID)
	}
	f.running[role] = deviceID
	return nil
}

func (f *fakeSlots) Stop(role models.SlotRole) error {
	if _, ok := f.running[role]; !ok {
		return apperrors.SlotNotRunning(string(role))
	}
	delete(f.running, role)
	return nil
}

func (f *fakeSlots) Status(role models.SlotRole) (models.SlotStatus, error) {
	id, ok := f.running[role]
	return models.SlotStatus{Role: role, DeviceID: id, Running: ok}, nil
}

func (f *fakeSlots) Shutdown() { f.shutdown = true }

type fixture struct {
	svc      StationService
	slots    *fakeSlots
	state    *session.State
	previews *stream.PreviewStore
	activity *observer.ActivityLog
	events   *observer.EventPublisher
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	state := session.NewState(session.Settings{OutputRoot: root, Project: "beetles"})
	events := observer.NewEventPublisher()
	activity := observer.NewActivityLog(10)
	metrics := observer.NewMetricsObserver()
	events.Subscribe(activity)
	events.Subscribe(metrics)
	ledger := metadata.NewLedger()
	previews := stream.NewPreviewStore()
	slots := newFakeSlots()

	svc := NewStationService(Dependencies{
		Slots:    slots,
		State:    state,
		Capture:  capture.NewSession(state, capture.DefaultOptions(), metadata.NewExifEmbedder(), ledger, events),
		Ledger:   ledger,
		Previews: previews,
		Activity: activity,
		Metrics:  metrics,
		Events:   events,
	})
	return &fixture{svc: svc, slots: slots, state: state, previews: previews, activity: activity, events: events, root: root}
}

func (f *fixture) ready() {
	f.state.SetAccession("NZAC001")
	f.state.SetLastFrame(models.SlotLabel, models.NewFrame(image.NewRGBA(image.Rect(0, 0, 32, 24)), "webcam 0", time.Now()))
}

func TestStartStopSlot(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.StartSlot(context.Background(), models.SlotLabel, " webcam:0 ")
	if err != nil {
		t.Fatalf("StartSlot failed: %v", err)
	}
	if !st.Running || st.DeviceID != "webcam:0" {
		t.Errorf("Expected running on webcam:0, got %+v", st)
	}

	_, err = f.svc.StartSlot(context.Background(), models.SlotBarcode, "webcam:0")
	if !apperrors.HasCode(err, apperrors.CodeCameraInUse) {
		t.Errorf("Expected CAMERA_IN_USE, got %v", err)
	}

	f.previews.PresentFrame(models.SlotLabel, models.Frame{}, nil)
	st, err = f.svc.StopSlot(models.SlotLabel)
	if err != nil || st.Running {
		t.Fatalf("Expected stopped slot, got %+v, %v", st, err)
	}
	if _, ok := f.svc.Preview(models.SlotLabel); ok {
		t.Error("Expected preview to be cleared on stop")
	}

	if _, err := f.svc.StopSlot(models.SlotLabel); !apperrors.HasCode(err, apperrors.CodeSlotNotRunning) {
		t.Errorf("Expected SLOT_NOT_RUNNING, got %v", err)
	}

	if _, err := f.svc.StartSlot(context.Background(), "side", "webcam:2"); !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found for unknown slot, got %v", err)
	}
}

func TestCaptureOverwriteConfirmation(t *testing.T) {
	f := newFixture(t)
	f.ready()

	if _, err := f.svc.Capture(context.Background(), "_label", false); err != nil {
		t.Fatalf("First capture failed: %v", err)
	}

	_, err := f.svc.Capture(context.Background(), "_label2", false)
	if !apperrors.HasCode(err, apperrors.CodeDestinationExists) {
		t.Fatalf("Expected DESTINATION_EXISTS, got %v", err)
	}

	res, err := f.svc.Capture(context.Background(), "_label2", true)
	if err != nil {
		t.Fatalf("Confirmed capture failed: %v", err)
	}
	if filepath.Base(res.Record.OutputPath) != "NZAC001_label2.jpg" {
		t.Errorf("Unexpected output %s", res.Record.OutputPath)
	}

	rows, err := f.svc.Captures("beetles")
	if err != nil {
		t.Fatalf("Captures failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 ledger rows, got %d", len(rows))
	}

	f.events.Wait()
	if got := f.svc.Metrics()["captures"]; got != int64(2) {
		t.Errorf("Expected 2 captures counted, got %v", got)
	}
	if len(f.svc.Activity()) != 2 {
		t.Errorf("Expected 2 activity lines, got %v", f.svc.Activity())
	}
}

func TestCaptureWithoutFrame(t *testing.T) {
	f := newFixture(t)
	f.state.SetAccession("NZAC001")

	_, err := f.svc.Capture(context.Background(), "", false)
	if !apperrors.HasCode(err, apperrors.CodeNoFrameAvailable) {
		t.Fatalf("Expected NO_FRAME_AVAILABLE, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "beetles")); !os.IsNotExist(err) {
		t.Error("Expected nothing to be created")
	}
}

func TestUpdateSession(t *testing.T) {
	f := newFixture(t)
	project := "moths"
	creator := "  A. Curator "
	accession := "NZAC009"

	snap, err := f.svc.UpdateSession(models.SessionUpdateRequest{Project: &project, Creator: &creator, Accession: &accession})
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if snap.Project != "moths" || snap.Creator != "A. Curator" || snap.Accession != "NZAC009" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if snap.OutputRoot != f.root {
		t.Errorf("Expected output root to be kept, got %s", snap.OutputRoot)
	}

	bad := "../moths"
	if _, err := f.svc.UpdateSession(models.SessionUpdateRequest{Project: &bad}); !apperrors.HasCode(err, apperrors.CodeInvalidSession) {
		t.Errorf("Expected INVALID_SESSION, got %v", err)
	}
	if f.svc.Session().Project != "moths" {
		t.Error("Expected rejected update to leave session unchanged")
	}

	empty := " "
	if _, err := f.svc.UpdateSession(models.SessionUpdateRequest{OutputRoot: &empty}); !apperrors.HasCode(err, apperrors.CodeInvalidSession) {
		t.Errorf("Expected INVALID_SESSION for empty root, got %v", err)
	}
}

func TestProjectConfigRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.ready()
	creator := "curator"
	f.svc.UpdateSession(models.SessionUpdateRequest{Creator: &creator})

	path, err := f.svc.SaveProjectConfig()
	if err != nil {
		t.Fatalf("SaveProjectConfig failed: %v", err)
	}
	if path != filepath.Join(f.root, "beetles", "beetles_config.yaml") {
		t.Errorf("Unexpected config path %s", path)
	}

	other := newFixture(t)
	other.ready()
	pc, err := other.svc.LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig failed: %v", err)
	}
	if pc.General.ProjectName != "beetles" {
		t.Errorf("Expected beetles, got %s", pc.General.ProjectName)
	}

	snap := other.svc.Session()
	if snap.OutputRoot != f.root || snap.Creator != "curator" {
		t.Errorf("Expected loaded settings, got %+v", snap)
	}
	if snap.Accession != "" || snap.HasFrame[models.SlotLabel] {
		t.Errorf("Expected accession and frames to be reset, got %+v", snap)
	}

	other.events.Wait()
	lines := other.svc.Activity()
	if len(lines) != 1 {
		t.Fatalf("Expected one activity line, got %v", lines)
	}
}

func TestLoadProjectConfigDefaultsName(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	doc := "general:\n  output_folder: " + f.root + "\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	pc, err := f.svc.LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig failed: %v", err)
	}
	if pc.General.ProjectName != config.DefaultProjectName {
		t.Errorf("Expected %s, got %s", config.DefaultProjectName, pc.General.ProjectName)
	}

	if _, err := f.svc.LoadProjectConfig(filepath.Join(t.TempDir(), "missing.yaml")); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for missing file, got %v", err)
	}
}

func TestShutdown(t *testing.T) {
	f := newFixture(t)
	f.svc.Shutdown()
	if !f.slots.shutdown {
		t.Error("Expected slots to be shut down")
	}
}

func TestCaptureWritesTheCheckedDestination(t *testing.T) {
	f := newFixture(t)
	f.ready()

	existing := filepath.Join(f.root, "beetles", "NZAC002")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatal(err)
	}

	svc := f.svc.(*stationService)
	target := svc.deps.Capture.CurrentTarget()
	// a new label is decoded after the target was read
	f.state.SetAccession("NZAC002")

	res, err := svc.captureTarget(context.Background(), target, "_label", false)
	if err != nil {
		t.Fatalf("Expected capture into the checked folder, got %v", err)
	}
	if filepath.Base(filepath.Dir(res.Record.OutputPath)) != "NZAC001" {
		t.Errorf("Expected capture under NZAC001, got %s", res.Record.OutputPath)
	}
	entries, err := os.ReadDir(existing)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected NZAC002 folder untouched, got %d entries", len(entries))
	}

	target = svc.deps.Capture.CurrentTarget()
	if _, err := svc.captureTarget(context.Background(), target, "_label", false); !apperrors.HasCode(err, apperrors.CodeDestinationExists) {
		t.Errorf("Expected DESTINATION_EXISTS for NZAC002, got %v", err)
	}
}
