package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/models"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

func TestBordereauLifecycle_Regression(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "cabinet_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	office, err := models.CreateOffice(ctx, &models.NewOffice{
		Name:  "Cabinet Test",
		Email: "contact@cabinet.test",
	})
	if err != nil {
		t.Fatalf("CreateOffice: %v", err)
	}
	officeId := office.ID.String()
	ctx = utils.SetOfficeIdInContext(ctx, officeId)

	sunday, _ := decimal.NewFromString("1.25")
	one := decimal.NewFromInt(1)
	if _, err := models.UpdateOfficePricingSettings(ctx, officeId, &models.OfficePricingSettings{
		NightMultiplier:       one,
		SundayMultiplier:      sunday,
		EmergencyMultiplier:   one,
		TravelIndemnityAmount: decimal.Zero,
	}); err != nil {
		t.Fatalf("UpdateOfficePricingSettings: %v", err)
	}

	patient, err := models.CreatePatient(ctx, &models.NewPatient{
		FirstName: "Jean",
		LastName:  "Moreau",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	prescriber, err := models.CreatePrescriber(ctx, &models.NewPrescriber{
		FirstName:    "Anne",
		LastName:     "Petit",
		AccordNumber: "12345678",
	})
	if err != nil {
		t.Fatalf("CreatePrescriber: %v", err)
	}

	ampPrice, _ := decimal.NewFromString("4830")
	amp, err := models.CreateCatalogAct(ctx, &models.NewCatalogAct{
		Family:      models.ActFamilyCare,
		Code:        "AMP",
		Label:       "Acte medico-podologique",
		UnitPrice:   ampPrice,
		Coefficient: one,
	})
	if err != nil {
		t.Fatalf("CreateCatalogAct(AMP): %v", err)
	}
	semellePrice, _ := decimal.NewFromString("12000")
	semelle, err := models.CreateCatalogAct(ctx, &models.NewCatalogAct{
		Family:      models.ActFamilyOrthopedic,
		Code:        "SEMELLE",
		Label:       "Paire de semelles",
		UnitPrice:   semellePrice,
		Coefficient: one,
		Rate:        decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateCatalogAct(SEMELLE): %v", err)
	}

	careDate := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	sheet, err := models.CreateCareSheet(ctx, &models.NewCareSheet{
		PatientId:    patient.ID.String(),
		PrescriberId: prescriber.ID.String(),
		CareDate:     careDate,
		Flags:        models.FlagSundayHoliday,
		Acts:         []models.DocumentActInput{{ActId: amp.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateCareSheet: %v", err)
	}
	// 4830 x 1.25 = 6037.5 rounds to 6038.
	if sheet.Total.Cmp(decimal.NewFromInt(6038)) != 0 {
		t.Fatalf("expected care sheet total 6038; got %s", sheet.Total.String())
	}

	// Replacing the act set with the same input must not change totals.
	sheet, err = models.UpdateCareSheet(ctx, sheet.ID, &models.UpdateCareSheetInput{
		Acts: []models.DocumentActInput{{ActId: amp.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateCareSheet: %v", err)
	}
	if sheet.Total.Cmp(decimal.NewFromInt(6038)) != 0 {
		t.Fatalf("replace with identical acts drifted total to %s", sheet.Total.String())
	}
	if len(sheet.Acts) != 1 {
		t.Fatalf("expected a single occurrence; got %d", len(sheet.Acts))
	}

	invoice, err := models.CreateOrthopedicInvoice(ctx, &models.NewOrthopedicInvoice{
		PatientId:    patient.ID.String(),
		PrescriberId: prescriber.ID.String(),
		InvoiceDate:  careDate,
		Acts:         []models.DocumentActInput{{ActId: semelle.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrthopedicInvoice: %v", err)
	}
	if invoice.Total.Cmp(decimal.NewFromInt(12000)) != 0 {
		t.Fatalf("expected invoice total 12000; got %s", invoice.Total.String())
	}
	if !invoice.PatientShare.IsZero() {
		t.Fatalf("expected patient share 0 at 100%% coverage; got %s", invoice.PatientShare.String())
	}

	// Mixed bundle takes both documents; a bogus id is skipped, not fatal.
	bundleB, err := models.CreateBordereau(ctx, &models.NewBordereau{
		Kind:                 models.BordereauKindMixed,
		Recipient:            "CPAM",
		CareSheetIds:         []int{sheet.ID, 99999},
		OrthopedicInvoiceIds: []int{invoice.ID},
	})
	if err != nil {
		t.Fatalf("CreateBordereau(B): %v", err)
	}
	if bundleB.DocumentCount != 2 {
		t.Fatalf("expected 2 documents on B; got %d", bundleB.DocumentCount)
	}
	if bundleB.Total.Cmp(decimal.NewFromInt(18038)) != 0 {
		t.Fatalf("expected B total 18038; got %s", bundleB.Total.String())
	}
	if len(bundleB.Degraded) != 0 {
		t.Fatalf("attach-time skips must not surface as degraded reads: %+v", bundleB.Degraded)
	}

	// Attaching the sheet to a new bundle moves it off B.
	bundleC, err := models.CreateBordereau(ctx, &models.NewBordereau{
		Kind:         models.BordereauKindCare,
		Recipient:    "CPAM",
		CareSheetIds: []int{sheet.ID},
	})
	if err != nil {
		t.Fatalf("CreateBordereau(C): %v", err)
	}
	if bundleC.DocumentCount != 1 {
		t.Fatalf("expected 1 document on C; got %d", bundleC.DocumentCount)
	}

	bundleB, err = models.GetBordereau(ctx, bundleB.ID)
	if err != nil {
		t.Fatalf("GetBordereau(B): %v", err)
	}
	if bundleB.DocumentCount != 1 {
		t.Fatalf("sheet should have moved to C; B still has %d documents", bundleB.DocumentCount)
	}
	if bundleB.Total.Cmp(decimal.NewFromInt(12000)) != 0 {
		t.Fatalf("expected B total 12000 after move; got %s", bundleB.Total.String())
	}

	// Listing materializes every bundle, documents included.
	listed, err := models.ListBordereaux(ctx, &models.BordereauFilter{})
	if err != nil {
		t.Fatalf("ListBordereaux: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 bordereaux listed; got %d", len(listed))
	}
	for _, entry := range listed {
		switch entry.ID {
		case bundleB.ID:
			if len(entry.OrthopedicInvoices) != 1 || len(entry.OrthopedicInvoices[0].Acts) != 1 {
				t.Fatalf("expected B listed with its invoice materialized; got %+v", entry)
			}
		case bundleC.ID:
			if len(entry.CareSheets) != 1 || entry.CareSheets[0].ID != sheet.ID {
				t.Fatalf("expected C listed with the sheet materialized; got %+v", entry)
			}
		default:
			t.Fatalf("unexpected bordereau %d in listing", entry.ID)
		}
	}

	// Full-replace update with an empty set detaches everything.
	bundleC, err = models.UpdateBordereau(ctx, bundleC.ID, &models.UpdateBordereauInput{
		CareSheetIds: []int{},
	})
	if err != nil {
		t.Fatalf("UpdateBordereau(C): %v", err)
	}
	if bundleC.DocumentCount != 0 {
		t.Fatalf("expected empty C after replace; got %d documents", bundleC.DocumentCount)
	}

	unattached, err := models.ListCareSheets(ctx, &models.CareSheetFilter{Unattached: true})
	if err != nil {
		t.Fatalf("ListCareSheets: %v", err)
	}
	if len(unattached) != 1 || unattached[0].ID != sheet.ID {
		t.Fatalf("expected the sheet back in the unattached pool; got %d rows", len(unattached))
	}

	// Empty bundles cannot commit.
	if _, err := models.CommitBordereau(ctx, bundleC.ID); err == nil {
		t.Fatal("expected commit of empty bordereau to fail")
	}

	committed, err := models.CommitBordereau(ctx, bundleB.ID)
	if err != nil {
		t.Fatalf("CommitBordereau(B): %v", err)
	}
	if committed.Status != models.BordereauStatusCommitted {
		t.Fatalf("expected Committed status; got %s", committed.Status)
	}

	// Commit leaves a pending dispatch event in the outbox.
	db := config.GetDB()
	var outboxCount int64
	if err := db.WithContext(ctx).Model(&models.OutboxRecord{}).
		Where("reference_type = ? AND reference_id = ? AND status = ?",
			"Bordereau", bundleB.ID, models.OutboxPublishStatusPending).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected 1 pending outbox row; got %d", outboxCount)
	}

	// Committed bundles are frozen: no delete, and attached documents
	// refuse deletion too.
	if err := models.DeleteBordereau(ctx, bundleB.ID); err == nil {
		t.Fatal("expected delete of committed bordereau to fail")
	}
	if err := models.DeleteOrthopedicInvoice(ctx, invoice.ID); err == nil {
		t.Fatal("expected delete of document on committed bordereau to fail")
	}

	// Committed bundles freeze their documents' act sets too.
	if _, err := models.UpdateOrthopedicInvoice(ctx, invoice.ID, &models.UpdateOrthopedicInvoiceInput{
		Acts: []models.DocumentActInput{{ActId: semelle.ID, Quantity: 2}},
	}); err == nil {
		t.Fatal("expected act edit on a committed bordereau's document to fail")
	}

	// A committed holder is never robbed: attaching its document to a
	// new bundle skips the document instead of moving it.
	bundleD, err := models.CreateBordereau(ctx, &models.NewBordereau{
		Kind:                 models.BordereauKindOrthopedic,
		Recipient:            "CPAM",
		OrthopedicInvoiceIds: []int{invoice.ID},
	})
	if err != nil {
		t.Fatalf("CreateBordereau(D): %v", err)
	}
	if bundleD.DocumentCount != 0 {
		t.Fatalf("invoice must stay on committed B; D holds %d documents", bundleD.DocumentCount)
	}
	bundleB, err = models.GetBordereau(ctx, bundleB.ID)
	if err != nil {
		t.Fatalf("GetBordereau(B) after attach attempt: %v", err)
	}
	if bundleB.DocumentCount != 1 || bundleB.Total.Cmp(decimal.NewFromInt(12000)) != 0 {
		t.Fatalf("committed B changed after attach attempt: %d documents, total %s",
			bundleB.DocumentCount, bundleB.Total.String())
	}

	// Another office sees neither the act links nor the office-scoped
	// catalog entry, warm cache or not.
	officeB, err := models.CreateOffice(ctx, &models.NewOffice{
		Name:  "Cabinet B",
		Email: "contact@cabinet-b.test",
	})
	if err != nil {
		t.Fatalf("CreateOffice(B): %v", err)
	}
	ctxB := utils.SetOfficeIdInContext(ctx, officeB.ID.String())

	foreignActs, err := models.GetDocumentActsForMany(ctxB, models.DocumentKindCareSheet, []int{sheet.ID})
	if err != nil {
		t.Fatalf("GetDocumentActsForMany(ctxB): %v", err)
	}
	if len(foreignActs[sheet.ID]) != 0 {
		t.Fatalf("office B must not read office A act links; got %d occurrences", len(foreignActs[sheet.ID]))
	}

	if _, err := models.GetCatalogAct(ctx, amp.ID); err != nil {
		t.Fatalf("GetCatalogAct warm-up: %v", err)
	}
	if _, err := models.GetCatalogAct(ctxB, amp.ID); err == nil {
		t.Fatal("office B must not resolve office A's catalog entry")
	}

	// Draft bundles delete cleanly and release their documents.
	if err := models.DeleteBordereau(ctx, bundleC.ID); err != nil {
		t.Fatalf("DeleteBordereau(C): %v", err)
	}
	if err := models.DeleteCareSheet(ctx, sheet.ID); err != nil {
		t.Fatalf("DeleteCareSheet: %v", err)
	}
	acts, err := models.GetDocumentActs(ctx, models.DocumentKindCareSheet, sheet.ID)
	if err != nil {
		t.Fatalf("GetDocumentActs after delete: %v", err)
	}
	if len(acts) != 0 {
		t.Fatalf("expected links removed with the sheet; got %d", len(acts))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cabinet-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cabinet-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=cabinet_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
