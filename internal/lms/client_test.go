package lms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveForumID_PrefersClasesGrabadas(t *testing.T) {
	forums := []Forum{
		{ID: 1, Name: "News forum"},
		{ID: 2, Name: "Clases Grabadas"},
	}
	id, ok := ResolveForumID(forums)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestResolveForumID_FallsBackToAnnouncements(t *testing.T) {
	forums := []Forum{
		{ID: 1, Name: "General"},
		{ID: 2, Name: "Announcements"},
	}
	id, ok := ResolveForumID(forums)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestResolveForumID_FallsBackToFirstForum(t *testing.T) {
	forums := []Forum{{ID: 7, Name: "Whatever"}}
	id, ok := ResolveForumID(forums)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestResolveForumID_NoForums(t *testing.T) {
	_, ok := ResolveForumID(nil)
	assert.False(t, ok)
}

func TestCourseByFullName_ParsesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "core_course_get_courses_by_field", r.FormValue("wsfunction"))
		assert.Equal(t, "fullname", r.FormValue("field"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"courses": []Course{{ID: 42, FullName: "Organic Chemistry", ShortName: "ORGCHEM"}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"}, nil)
	course, err := c.CourseByFullName(context.Background(), "Organic Chemistry")
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, int64(42), course.ID)
}

func TestCourseByFullName_NoMatchReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"courses": []Course{}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"}, nil)
	course, err := c.CourseByFullName(context.Background(), "Nothing Matching")
	require.NoError(t, err)
	assert.Nil(t, course)
}

func TestCall_NonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"}, nil)
	_, err := c.CourseByFullName(context.Background(), "anything")
	assert.Error(t, err)
}
