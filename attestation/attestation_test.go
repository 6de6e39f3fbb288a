package attestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockwipe/wipeattest/wipe"
)

func completedResult() wipe.Result {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)
	return wipe.Result{
		DeviceSnapshot: wipe.DeviceSnapshot{
			Path: "/dev/sdz", Name: "Fake Disk", Model: "FAKE-1000",
			Serial: "SN-1", SizeBytes: 8 << 20, SectorSize: 4096, Class: "HDD",
		},
		Method:          wipe.NewQuick(),
		PlanExecuted:    wipe.BuildPassPlan(wipe.NewQuick()),
		Start:           start,
		End:             end,
		PassesCompleted: 1,
		Status:          wipe.StatusCompleted,
	}
}

func TestBuildAndVerify_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, nil)

	sc, err := b.Build(completedResult(), OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)
	require.Equal(t, "Quick Wipe (1-Pass Zeros)", sc.MethodUsed)
	require.NoError(t, Verify(*sc))
}

func TestBuild_RefusesNonCompleted(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, nil)

	result := completedResult()
	result.Status = wipe.StatusCancelled
	result.PassesCompleted = 0

	_, err := b.Build(result, OperatorIdentity{})
	require.ErrorIs(t, err, ErrBuildRefusedNonTerminal)
}

func TestVerify_TamperDetection(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, nil)

	sc, err := b.Build(completedResult(), OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)
	require.NoError(t, Verify(*sc))

	tampered := *sc
	tampered.PassesCompleted = 999
	require.ErrorIs(t, Verify(tampered), ErrSignatureInvalid)
}

func TestCertID_Deterministic(t *testing.T) {
	generatedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := certID("DEV-1", generatedAt)
	// SHA256("DEV-1:2024-01-01T00:00:00Z") first 16 hex chars, uppercased,
	// per spec §8 scenario S6.
	require.Equal(t, "CERT-72126B6121D70ADE", got)

	got2 := certID("DEV-1", generatedAt)
	require.Equal(t, got, got2)
}

func TestKeyPair_GeneratedOnceAndReused(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, nil)

	r := completedResult()
	sc1, err := b.Build(r, OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)

	// Fresh Builder over the same directory must load the persisted key
	// rather than regenerating, so two certs from different Builder
	// instances verify against the same public key material.
	b2 := NewBuilder(dir, nil)
	sc2, err := b2.Build(r, OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)

	require.Equal(t, sc1.Signature.PublicKeyPEM, sc2.Signature.PublicKeyPEM)
}

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, nil)
	sc, err := b.Build(completedResult(), OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(*sc)
	require.NoError(t, err)
	require.FileExists(t, path)

	loaded, err := store.Load(sc.CertID)
	require.NoError(t, err)
	require.Equal(t, sc.CertID, loaded.CertID)
	require.NoError(t, Verify(*loaded))
}
