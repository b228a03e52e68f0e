package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stafflink/go-chat-core/internal/domain"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestOpenSQLite_CreatesAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if _, err := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{}); err != nil {
		t.Fatalf("write after open: %v", err)
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "chat.db")); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestCreateAndGetGroup(t *testing.T) {
	db := newDB(t)

	g, err := CreateGroup(db, "Team", "desc", "alice", domain.GroupSettings{OnlyAdminsCanSend: true})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	got, err := GetGroup(db, g.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if got.Name != "Team" || got.OwnerID != "alice" || !got.Active {
		t.Fatalf("group = %+v", got)
	}
	if !got.Settings.OnlyAdminsCanSend {
		t.Fatalf("settings not round-tripped: %+v", got.Settings)
	}
	if len(got.Members) != 1 || got.Members[0].Role != domain.RoleOwner {
		t.Fatalf("members = %+v", got.Members)
	}

	if _, err := GetGroup(db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing group err = %v; want ErrNotFound", err)
	}
}

func TestGetGroup_MembersOrderedByJoinTime(t *testing.T) {
	db := newDB(t)
	g, err := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	for _, uid := range []string{"bob", "carol", "dave"} {
		if err := AddGroupMember(db, g.ID, uid, domain.RoleMember, "alice"); err != nil {
			t.Fatalf("AddGroupMember(%s): %v", uid, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := GetGroup(db, g.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	want := []string{"alice", "bob", "carol", "dave"}
	if len(got.Members) != len(want) {
		t.Fatalf("members = %d; want %d", len(got.Members), len(want))
	}
	for i, uid := range want {
		if got.Members[i].UserID != uid {
			t.Fatalf("member[%d] = %s; want %s", i, got.Members[i].UserID, uid)
		}
	}
}

func TestAddGroupMember_DuplicateRejected(t *testing.T) {
	db := newDB(t)
	g, _ := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})

	if err := AddGroupMember(db, g.ID, "bob", domain.RoleMember, "alice"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := AddGroupMember(db, g.ID, "bob", domain.RoleMember, "alice"); err == nil {
		t.Fatalf("duplicate membership accepted")
	}
}

func TestMembershipMutations(t *testing.T) {
	db := newDB(t)
	g, _ := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})
	if err := AddGroupMember(db, g.ID, "bob", domain.RoleMember, "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := UpdateMemberRole(db, g.ID, "bob", domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	if err := UpdateGroupOwner(db, g.ID, "bob"); err != nil {
		t.Fatalf("UpdateGroupOwner: %v", err)
	}
	if err := RemoveGroupMember(db, g.ID, "alice"); err != nil {
		t.Fatalf("RemoveGroupMember: %v", err)
	}

	got, _ := GetGroup(db, g.ID)
	if got.OwnerID != "bob" || got.MemberRole("bob") != domain.RoleAdmin || got.IsMember("alice") {
		t.Fatalf("after mutations: %+v", got)
	}
}

func TestDeactivateGroup_KeepsHistory(t *testing.T) {
	db := newDB(t)
	g, _ := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})
	if _, err := CreateGroupMessage(db, g.ID, "alice", "hello"); err != nil {
		t.Fatalf("message: %v", err)
	}

	if err := DeactivateGroup(db, g.ID); err != nil {
		t.Fatalf("DeactivateGroup: %v", err)
	}
	got, err := GetGroup(db, g.ID)
	if err != nil || got.Active {
		t.Fatalf("after deactivate: %+v (err %v)", got, err)
	}
	total, err := CountGroupMessages(db, g.ID)
	if err != nil || total != 1 {
		t.Fatalf("history after deactivate = %d (err %v)", total, err)
	}
}

func TestListActiveGroupsByMember(t *testing.T) {
	db := newDB(t)
	g1, _ := CreateGroup(db, "One", "", "alice", domain.GroupSettings{})
	g2, _ := CreateGroup(db, "Two", "", "alice", domain.GroupSettings{})
	CreateGroup(db, "Other", "", "bob", domain.GroupSettings{})
	if err := DeactivateGroup(db, g2.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	groups, err := ListActiveGroupsByMember(db, "alice")
	if err != nil {
		t.Fatalf("ListActiveGroupsByMember: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != g1.ID {
		t.Fatalf("groups = %+v; want only %s", groups, g1.ID)
	}
}

func TestUpdateGroupLastMessage(t *testing.T) {
	db := newDB(t)
	g, _ := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := UpdateGroupLastMessage(db, g.ID, "latest", "alice", at); err != nil {
		t.Fatalf("UpdateGroupLastMessage: %v", err)
	}
	got, _ := GetGroup(db, g.ID)
	if got.LastMessageText != "latest" || got.LastMessageSenderID != "alice" || got.LastMessageAt == nil {
		t.Fatalf("summary = %+v", got)
	}
}

func TestGroupMessages_SoftDeleteAndPaging(t *testing.T) {
	db := newDB(t)
	g, _ := CreateGroup(db, "Team", "", "alice", domain.GroupSettings{})

	var first string
	for _, txt := range []string{"a", "b", "c"} {
		m, err := CreateGroupMessage(db, g.ID, "alice", txt)
		if err != nil {
			t.Fatalf("CreateGroupMessage: %v", err)
		}
		if first == "" {
			first = m.ID
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := SoftDeleteGroupMessage(db, first); err != nil {
		t.Fatalf("SoftDeleteGroupMessage: %v", err)
	}

	// Tombstones stay in the page and in the count.
	page, err := ListGroupMessagesPage(db, g.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListGroupMessagesPage: %v", err)
	}
	if len(page) != 3 || !page[0].Deleted || page[1].Deleted {
		t.Fatalf("page = %+v", page)
	}
	total, err := CountGroupMessages(db, g.ID)
	if err != nil || total != 3 {
		t.Fatalf("count = %d (err %v)", total, err)
	}
}

func TestDirectMessages_ThreadQueries(t *testing.T) {
	db := newDB(t)
	alice, bob := "alice", "bob"

	if _, err := CreateDirectMessage(db, &alice, bob, "hi", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := CreateDirectMessage(db, &bob, alice, "hey", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	// Alice's assistant thread.
	if _, err := CreateDirectMessage(db, &alice, alice, "question", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := CreateDirectMessage(db, nil, alice, "answer", true); err != nil {
		t.Fatalf("create: %v", err)
	}

	thread, err := ListDirectThreadPage(db, alice, bob, 0, 10)
	if err != nil {
		t.Fatalf("ListDirectThreadPage: %v", err)
	}
	if len(thread) != 2 || thread[0].Text != "hi" || thread[1].Text != "hey" {
		t.Fatalf("thread = %+v", thread)
	}
	if total, err := CountDirectThread(db, bob, alice); err != nil || total != 2 {
		t.Fatalf("count = %d (err %v)", total, err)
	}

	// The assistant thread holds the echoed prompt and the reply, nothing else.
	at, err := ListAssistantThreadPage(db, alice, 0, 10)
	if err != nil {
		t.Fatalf("ListAssistantThreadPage: %v", err)
	}
	if len(at) != 2 || at[0].Text != "question" || !at[1].IsFromAssistant {
		t.Fatalf("assistant thread = %+v", at)
	}
	if total, err := CountAssistantThread(db, alice); err != nil || total != 2 {
		t.Fatalf("assistant count = %d (err %v)", total, err)
	}
	// Bob has no assistant history.
	if total, _ := CountAssistantThread(db, bob); total != 0 {
		t.Fatalf("bob assistant count = %d; want 0", total)
	}
}
