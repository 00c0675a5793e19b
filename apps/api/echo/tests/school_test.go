package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func createClass(t *testing.T, name string, level int) school.Class {
	t.Helper()

	now := time.Now().UTC()
	cls, err := classRepo.CreateClass(context.Background(), school.Class{
		Name:      name,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func createAnnouncement(t *testing.T, title, body, classID string) school.Announcement {
	t.Helper()

	now := time.Now().UTC()
	an, err := postRepo.CreateAnnouncement(context.Background(), school.Announcement{
		Title:     title,
		Body:      body,
		ClassID:   null.NewString(classID, classID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAnnouncement() failed: %v", err)
	}
	return an
}

func Test_schoolApi_studentCreate(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	body := marshalObj(t, school.NewStudent{Name: "Hero", Surname: "Moyo"})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, teacher), body: body, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"name":    "this field is required",
				"surname": "this field is required",
			}),
		},
		{name: "student created", token: getToken(t, admin), body: body, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/students"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var st school.Student
				if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if st.ID == "" {
					t.Error("failed! empty student ID")
				}
				if st.Name != "Hero" || st.Surname != "Moyo" {
					t.Errorf("failed! got %s %s; want Hero Moyo", st.Name, st.Surname)
				}
			}
		})
	}
}

func Test_schoolApi_studentQuery(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	parentUsr := testutil.CreateUser(t, usrRepo, "Mama", "mama", "mama@test.cd", "", []string{user.RoleParent}, true)

	// sorted by surname
	child := testutil.CreateStudent(t, studentRepo, "Kid", "Abedi", "", parentUsr.ID)
	own := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")
	other := testutil.CreateStudent(t, studentRepo, "Ana", "Zola", "", "")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admins see all students", token: getToken(t, admin), wantCode: http.StatusOK,
			wantData: marshalList(t, child, own, other),
		},
		{
			name: "teachers see all students", token: getToken(t, teacher), wantCode: http.StatusOK,
			wantData: marshalList(t, child, own, other),
		},
		{
			name: "students see their own record only", token: getToken(t, studentUsr), wantCode: http.StatusOK,
			wantData: marshalList(t, own),
		},
		{
			name: "parents see their children only", token: getToken(t, parentUsr), wantCode: http.StatusOK,
			wantData: marshalList(t, child),
		},
		{
			name: "search", path: "/v1/students?search=zola", token: getToken(t, admin), wantCode: http.StatusOK,
			wantData: marshalList(t, other),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.path == "" {
			tt.path = "/v1/students"
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_studentRetrieve(t *testing.T) {
	resetDB(t)

	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	parentUsr := testutil.CreateUser(t, usrRepo, "Mama", "mama", "mama@test.cd", "", []string{user.RoleParent}, true)

	own := testutil.CreateStudent(t, studentRepo, "Hero", "Moyo", studentUsr.ID, "")
	child := testutil.CreateStudent(t, studentRepo, "Kid", "Abedi", "", parentUsr.ID)

	tests := []httpTest{
		{
			name: "students cannot see other records", path: "/v1/students/" + child.ID,
			token: getToken(t, studentUsr), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "students see their own record", path: "/v1/students/" + own.ID,
			token: getToken(t, studentUsr), wantCode: http.StatusOK, wantData: marshalObj(t, own),
		},
		{
			name: "parents see their children", path: "/v1/students/" + child.ID,
			token: getToken(t, parentUsr), wantCode: http.StatusOK, wantData: marshalObj(t, child),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_classCreate(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marshalObj(t, school.NewClass{Name: "4B", Level: 4})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, studentUsr), body: body, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "this field is required"}),
		},
		{name: "class created", token: getToken(t, admin), body: body, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/classes"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_classQuery(t *testing.T) {
	resetDB(t)

	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	// sorted by level
	c2 := createClass(t, "2A", 2)
	c4 := createClass(t, "4B", 4)
	c6 := createClass(t, "6C", 6)

	tt := httpTest{
		name: "any authenticated user can list classes", method: http.MethodGet, path: "/v1/classes",
		token: getToken(t, studentUsr), wantCode: http.StatusOK, wantData: marshalList(t, c2, c4, c6),
	}
	t.Run(tt.name, func(t *testing.T) {
		req, rec := newAuthRequest(tt.method, tt.path, tt.token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_schoolApi_announcementCreate(t *testing.T) {
	resetDB(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marshalObj(t, school.NewAnnouncement{Title: "Exam week", Body: "Exams start Monday."})

	tests := []httpTest{
		{
			name: "Staff required", token: getToken(t, studentUsr), body: body, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "teachers can post announcements", token: getToken(t, teacher), body: body, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/announcements"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_announcementQuery(t *testing.T) {
	resetDB(t)

	studentUsr := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	cls := createClass(t, "4B", 4)
	classAnn := createAnnouncement(t, "Field trip", "Bring boots.", cls.ID)
	schoolAnn := createAnnouncement(t, "Fees due", "Pay up.", "")
	otherAnn := createAnnouncement(t, "5C only", "Not for you.", "9e7e60f8-85a9-44f4-a80b-34e5e2b09cbd")

	type extraTest struct {
		wantIDs map[string]bool
	}
	tests := []httpTest{
		{
			name: "all announcements", path: "/v1/announcements", wantCode: http.StatusOK,
			extra: extraTest{wantIDs: map[string]bool{classAnn.ID: true, schoolAnn.ID: true, otherAnn.ID: true}},
		},
		{
			// school-wide announcements show up in every class feed
			name: "class feed", path: "/v1/announcements?class_id=" + cls.ID, wantCode: http.StatusOK,
			extra: extraTest{wantIDs: map[string]bool{classAnn.ID: true, schoolAnn.ID: true}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = getToken(t, studentUsr)

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			var res []school.Announcement
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("json.Unmarshal(): %v", err)
			}
			extra := tt.extra.(extraTest)
			if len(res) != len(extra.wantIDs) {
				t.Fatalf("failed! got %d announcements; want %d", len(res), len(extra.wantIDs))
			}
			for _, an := range res {
				if !extra.wantIDs[an.ID] {
					t.Errorf("failed! unexpected announcement %q (%s)", an.Title, an.ID)
				}
			}
		})
	}
}
