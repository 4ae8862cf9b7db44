package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/models"
	"github.com/mmdatafocus/reviews_backend/trackersync"
	"github.com/mmdatafocus/reviews_backend/utils"
	"github.com/mmdatafocus/reviews_backend/workflow"
	"github.com/sirupsen/logrus"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		token, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.Logout(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func actorFromContext(c *gin.Context) (workflow.Actor, bool) {
	ctx := c.Request.Context()
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return workflow.Actor{}, false
	}
	userName, _ := utils.GetUserNameFromContext(ctx)
	roleRaw, _ := utils.GetUserRoleFromContext(ctx)
	role, err := models.ParseUserRole(roleRaw)
	if err != nil {
		role = models.UserRoleMember
	}
	return workflow.Actor{ID: userId, Name: userName, Role: role}, true
}

func reviewIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return 0, false
	}
	return id, true
}

func createReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewReview
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		review, err := models.CreateReview(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, review)
	}
}

func listReviewsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reviews, err := models.ListReviews(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, reviews)
	}
}

func getReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reviewIdParam(c)
		if !ok {
			return
		}

		review, err := models.GetReview(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

func getStatusHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reviewIdParam(c)
		if !ok {
			return
		}

		if _, err := models.GetReview(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}
		entries, err := models.GetStatusHistory(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

type updateStatusRequest struct {
	NewStatus string `json:"newStatus" binding:"required"`
}

// updateReviewStatusHandler is the transition endpoint: guard, persist,
// then best-effort mirror to the tracker. A sync failure downgrades to a
// warning in the response; the local store already holds the truth and the
// reconcile sweep retries the mirror.
func updateReviewStatusHandler(logger *logrus.Logger, adapter *trackersync.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reviewIdParam(c)
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "newStatus is required"})
			return
		}

		requested, err := models.ParseReviewStatus(req.NewStatus)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		actor, ok := actorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "review.transition")
		defer span.End()

		review, err := models.GetReview(ctx, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}

		transition, err := workflow.AttemptTransition(review, requested, actor, time.Now())
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrBadStatus):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrForbidden):
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrIllegalTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrIncompleteReview):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		rules, err := models.ListSLARules(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		store := workflow.NewStatusStore(config.GetDB(), logger)
		updated, err := store.Apply(ctx, transition, rules)
		if err != nil {
			// The local store is the system of record; its failure must
			// never surface as success.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		syncWarning := ""
		if !transition.NoOp && updated.ExternalProjectId != nil {
			if adapter == nil {
				syncWarning = "tracker sync is not configured; status not mirrored"
			} else if err := adapter.PushStatus(ctx, *updated.ExternalProjectId, updated.Status); err != nil {
				syncWarning = "status saved but tracker sync failed; the next reconcile sweep will retry"
				config.LogWarn(logger, "reviews_rest.go", "updateReviewStatusHandler", "push status to tracker", updated.ID, err)
			}
		}

		resp := gin.H{"review": updated}
		if syncWarning != "" {
			resp["syncWarning"] = syncWarning
		}
		c.JSON(http.StatusOK, resp)
	}
}

type linkTrackerRequest struct {
	ProjectId string `json:"projectId" binding:"required"`
}

func linkTrackerProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reviewIdParam(c)
		if !ok {
			return
		}

		var req linkTrackerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
			return
		}

		if !canManageLink(c, id) {
			return
		}

		review, err := models.LinkTrackerProject(c.Request.Context(), id, req.ProjectId)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrProjectAlreadyLinked):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, utils.ErrorRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

func unlinkTrackerProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := reviewIdParam(c)
		if !ok {
			return
		}

		if !canManageLink(c, id) {
			return
		}

		review, err := models.UnlinkTrackerProject(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

// canManageLink allows the owner or an Admin to manage the tracker link.
func canManageLink(c *gin.Context, reviewId int) bool {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	if actor.Role == models.UserRoleAdmin {
		return true
	}

	review, err := models.GetReview(c.Request.Context(), reviewId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return false
	}
	if review.OwnerId != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner or an admin can manage the tracker link"})
		return false
	}
	return true
}

func listSLARulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := models.ListSLARules(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func upsertSLARuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSLARule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		rule, err := models.UpsertSLARule(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}
