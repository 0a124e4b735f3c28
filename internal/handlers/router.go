package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/eduforge/exam-engine/internal/config"
	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/services"
	"github.com/eduforge/exam-engine/internal/utils"
	"github.com/eduforge/exam-engine/internal/validator"
)

type HandlerManager struct {
	questionBankHandler *QuestionBankHandler
	questionHandler     *QuestionHandler
	matrixHandler       *MatrixHandler
	examHandler         *ExamHandler
	attemptHandler      *AttemptHandler
	userHandler         *UserHandler
	authMiddleware      *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		questionBankHandler: NewQuestionBankHandler(serviceManager.QuestionBank(), serviceManager.ImportExport(), logger),
		questionHandler:     NewQuestionHandler(serviceManager.Question(), logger),
		matrixHandler:       NewMatrixHandler(serviceManager.Matrix(), logger),
		examHandler:         NewExamHandler(serviceManager.Exam(), logger),
		attemptHandler:      NewAttemptHandler(serviceManager.Attempt(), logger),
		userHandler:         NewUserHandler(userRepo, logger),
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware()) // Apply authentication to all API routes
	{
		authoring := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

		// Question bank routes
		questionBanks := v1.Group("/question-banks")
		{
			// Authoring - Teachers and Admins only
			questionBanks.POST("", authoring, hm.questionBankHandler.CreateQuestionBank)
			questionBanks.PUT("/:id", authoring, hm.questionBankHandler.UpdateQuestionBank)
			questionBanks.DELETE("/:id", authoring, hm.questionBankHandler.DeleteQuestionBank)
			questionBanks.POST("/:id/import", authoring, hm.questionBankHandler.ImportQuestions)
			questionBanks.GET("/:id/export", authoring, hm.questionBankHandler.ExportQuestions)

			// View - All authenticated users
			questionBanks.GET("", hm.questionBankHandler.ListQuestionBanks)
			questionBanks.GET("/:id", hm.questionBankHandler.GetQuestionBank)
		}

		// Question routes - Teachers and Admins only (questions carry answer keys)
		questions := v1.Group("/questions")
		questions.Use(authoring)
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.POST("/batch", hm.questionHandler.BatchCreateQuestions)
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/supply", hm.questionHandler.CountSupply)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		// Matrix routes - Teachers and Admins only
		matrices := v1.Group("/matrices")
		matrices.Use(authoring)
		{
			matrices.POST("", hm.matrixHandler.CreateMatrix)
			matrices.GET("", hm.matrixHandler.ListMatrices)
			matrices.GET("/:id", hm.matrixHandler.GetMatrix)
			matrices.PUT("/:id", hm.matrixHandler.UpdateMatrix)
			matrices.DELETE("/:id", hm.matrixHandler.DeleteMatrix)
			matrices.POST("/:id/validate", hm.matrixHandler.ValidateMatrix)
		}

		// Exam routes
		exams := v1.Group("/exams")
		{
			// Authoring - Teachers and Admins only
			exams.POST("/assemble", authoring, hm.examHandler.AssembleExam)
			exams.POST("/preview", authoring, hm.examHandler.PreviewExam)
			exams.PUT("/:id", authoring, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", authoring, hm.examHandler.DeleteExam)
			exams.POST("/:id/publish", authoring, hm.examHandler.PublishExam)
			exams.POST("/:id/deactivate", authoring, hm.examHandler.DeactivateExam)
			exams.GET("/:id/questions", authoring, hm.examHandler.GetExamWithQuestions)

			// View - All authenticated users
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.POST("/:id/access", hm.examHandler.CheckExamAccess)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/my", hm.attemptHandler.GetMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetAttemptResult)
		}

		// User routes (lookups for exam sharing and attempt review)
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-engine",
		})
	})
}
