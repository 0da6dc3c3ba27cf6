//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/showcase/api/internal/domain"
	pconfig "github.com/showcase/api/internal/platform/config"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/repositories"
)

func TestCatalogRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "catalog-test", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	repo, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("new catalog repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	first, err := repo.Insert(ctx, domain.Catalog{
		UserID:       "owner-1",
		Slug:         "cafe-noir",
		BusinessName: "Cafe Noir",
		Template:     domain.TemplateClassic,
		Items:        []domain.CatalogItem{{ID: "a", Name: "Espresso", IsAvailable: true}},
		IsActive:     true,
		CreatedAt:    created,
		LastUpdated:  created,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}

	t.Run("active slug collision is a conflict", func(t *testing.T) {
		_, err := repo.Insert(ctx, domain.Catalog{UserID: "owner-2", Slug: "cafe-noir", BusinessName: "Other", IsActive: true, CreatedAt: created, LastUpdated: created})
		if !errors.Is(err, repositories.ErrSlugTaken) {
			t.Fatalf("expected slug taken, got %v", err)
		}
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict classification, got %T", err)
		}

		inactive, err := repo.Insert(ctx, domain.Catalog{UserID: "owner-2", Slug: "cafe-noir", BusinessName: "Draft", IsActive: false, CreatedAt: created, LastUpdated: created})
		if err != nil {
			t.Fatalf("inactive duplicate should be accepted: %v", err)
		}
		if _, err := repo.SetActive(ctx, inactive.ID, repositories.ActivationChange{Active: true, LastUpdated: created}); !errors.Is(err, repositories.ErrSlugTaken) {
			t.Fatalf("publishing duplicate should conflict, got %v", err)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const workers = 24
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				if err := repo.IncrementStat(ctx, first.ID, domain.EngagementView.StatPath(), 1); err != nil {
					t.Errorf("increment: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := repo.FindByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.EngagementStats.Views != workers {
			t.Fatalf("expected %d views, got %d", workers, got.EngagementStats.Views)
		}
	})

	t.Run("replace keeps counters and createdAt", func(t *testing.T) {
		if err := repo.IncrementStat(ctx, first.ID, domain.ShareCopy.StatPath(), 1); err != nil {
			t.Fatalf("increment share: %v", err)
		}
		updated := first
		updated.BusinessName = "Cafe Noir & Co"
		updated.CreatedAt = time.Time{}
		updated.LastUpdated = created.Add(time.Hour)
		updated.EngagementStats = domain.EngagementStats{}
		if _, err := repo.Replace(ctx, updated); err != nil {
			t.Fatalf("replace: %v", err)
		}

		got, err := repo.FindByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.BusinessName != "Cafe Noir & Co" || !got.CreatedAt.Equal(created) {
			t.Fatalf("unexpected catalog after replace: %+v", got)
		}
		if got.EngagementStats.Views == 0 || got.ShareStats.Copy != 1 {
			t.Fatalf("counters should survive replace: %+v %+v", got.EngagementStats, got.ShareStats)
		}
	})

	t.Run("slug lookup ignores inactive catalogs", func(t *testing.T) {
		found, err := repo.FindActiveBySlug(ctx, "cafe-noir")
		if err != nil || found.ID != first.ID {
			t.Fatalf("expected active catalog, got %+v %v", found, err)
		}
		if _, err := repo.SetActive(ctx, first.ID, repositories.ActivationChange{Active: false, LastUpdated: created.Add(2 * time.Hour)}); err != nil {
			t.Fatalf("unpublish: %v", err)
		}
		_, err = repo.FindActiveBySlug(ctx, "cafe-noir")
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			t.Fatalf("expected not found after unpublish, got %v", err)
		}
	})

	t.Run("list pages newest first", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ts := created.Add(time.Duration(10+i) * time.Hour)
			if _, err := repo.Insert(ctx, domain.Catalog{UserID: "lister", Slug: fmt.Sprintf("menu-%d", i), BusinessName: "Menu", CreatedAt: ts, LastUpdated: ts}); err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
		}
		page, err := repo.ListByUser(ctx, "lister", repositories.CatalogListFilter{Pagination: domain.Pagination{PageSize: 2}})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Items) != 2 || page.Items[0].Slug != "menu-2" || page.NextPageToken == "" {
			t.Fatalf("unexpected first page: %+v", page)
		}
		next, err := repo.ListByUser(ctx, "lister", repositories.CatalogListFilter{Pagination: domain.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
		if err != nil {
			t.Fatalf("list next: %v", err)
		}
		if len(next.Items) != 1 || next.Items[0].Slug != "menu-0" || next.NextPageToken != "" {
			t.Fatalf("unexpected second page: %+v", next)
		}
	})

	t.Run("subscription delivers current state first", func(t *testing.T) {
		subCtx, stop := context.WithCancel(ctx)
		defer stop()
		stream, err := repo.SubscribeByUser(subCtx, "lister")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		select {
		case snap := <-stream:
			if snap.Err != nil || len(snap.Catalogs) != 3 {
				t.Fatalf("unexpected first snapshot: %+v", snap)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("no snapshot delivered")
		}
		stop()
		for range stream {
		}
	})

	t.Run("delete is permanent", func(t *testing.T) {
		if err := repo.Delete(ctx, first.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, err := repo.FindByID(ctx, first.ID)
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
