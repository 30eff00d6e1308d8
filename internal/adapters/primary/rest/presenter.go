package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

type envelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data"`
	Degraded bool   `json:"degraded,omitempty"`
}

type userResponse struct {
	Username       string `json:"username"`
	FullName       string `json:"full_name,omitempty"`
	Bio            string `json:"bio,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

type followResponse struct {
	Follower  string    `json:"follower"`
	Followee  string    `json:"followee"`
	CreatedAt time.Time `json:"created_at"`
}

type statsResponse struct {
	FollowingCount     int `json:"following_count"`
	FollowersCount     int `json:"followers_count"`
	MutualFollowsCount int `json:"mutual_follows_count"`
}

type relationResponse struct {
	IsFollowing  bool `json:"is_following"`
	IsFollowedBy bool `json:"is_followed_by"`
	IsMutual     bool `json:"is_mutual"`
}

type pageResponse struct {
	Data       []userResponse `json:"data"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		Username:       u.Username,
		FullName:       u.FullName(),
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
	}
}

func toFollowResponse(f *domain.Follow) followResponse {
	return followResponse{Follower: f.FollowerID, Followee: f.FolloweeID, CreatedAt: f.CreatedAt}
}

func toStatsResponse(s domain.FollowStats) statsResponse {
	return statsResponse{
		FollowingCount:     s.FollowingCount,
		FollowersCount:     s.FollowersCount,
		MutualFollowsCount: s.MutualFollowsCount,
	}
}

func toRelationResponse(r domain.RelationStatus) relationResponse {
	return relationResponse{IsFollowing: r.IsFollowing, IsFollowedBy: r.IsFollowedBy, IsMutual: r.IsMutual()}
}

// toPageResponse garde les métadonnées de la page d'ids ; Data peut être plus courte
// si des users ont disparu entre-temps.
func toPageResponse(p domain.Page[string], users []userResponse) pageResponse {
	return pageResponse{
		Data:       users,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	}
}

// writeResult écrit un Result sans hydratation.
func writeResult[T any, D any](c *gin.Context, res domain.Result[T], data D) {
	if !res.Success {
		writeFailure(c, res.Message, res.Err, res.Degraded)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: res.Message, Data: data, Degraded: res.Degraded})
}

func writeFailure(c *gin.Context, message string, err error, degraded bool) {
	status := statusFor(err)
	if degraded {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, envelope{Success: false, Message: message, Data: nil, Degraded: degraded})
}

// statusFor traduit les erreurs du domaine en codes HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSelfFollow), errors.Is(err, domain.ErrEmptyUserID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFollowing), errors.Is(err, domain.ErrNotFollowing):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConstraintViolation):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
