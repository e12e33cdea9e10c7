// Command seed loads a small development dataset: users with each role,
// two departments, and a handful of students, courses, fees and salary
// records so every governed entity has rows to preview against.
package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	statements := []string{
		`INSERT INTO users (user_id, role, department_scope, role_version) VALUES
			('admin-1', 'admin', NULL, 1),
			('registrar-1', 'registrar', NULL, 1),
			('faculty-cs-1', 'faculty', 'Computer Science', 1),
			('student-cs-1', 'student', 'Computer Science', 1)
		ON CONFLICT (user_id) DO NOTHING`,

		`INSERT INTO departments (name, code) VALUES
			('Computer Science', 'CS'),
			('Mechanical Engineering', 'ME')
		ON CONFLICT (name) DO NOTHING`,

		`INSERT INTO students (roll_number, semester, section, cgpa, admission_year, department_id) VALUES
			('CS2021001', 6, 'A', 8.20, 2021, 1),
			('CS2021002', 6, 'A', 7.45, 2021, 1),
			('CS2022001', 4, 'B', 9.10, 2022, 1),
			('ME2021001', 6, 'A', 6.80, 2021, 2),
			('ME2022001', 4, 'A', 7.90, 2022, 2)
		ON CONFLICT (roll_number) DO NOTHING`,

		`INSERT INTO courses (code, name, semester, credits, department_id) VALUES
			('CS301', 'Operating Systems', 6, 4, 1),
			('CS302', 'Databases', 6, 4, 1),
			('ME301', 'Thermodynamics', 6, 4, 2)
		ON CONFLICT (code) DO NOTHING`,

		`INSERT INTO student_fees (student_id, fee_type, amount, semester, academic_year, is_paid)
			SELECT id, 'tuition', 45000.00, semester, '2025-26', FALSE FROM students
			WHERE NOT EXISTS (SELECT 1 FROM student_fees)`,

		`INSERT INTO employees (employee_type, date_of_joining, phone, city, state)
			SELECT v.* FROM (VALUES
				('teaching', DATE '2018-07-01', '9800000001', 'Pune', 'MH'),
				('non_teaching', DATE '2020-01-15', '9800000002', 'Pune', 'MH')
			) AS v(employee_type, date_of_joining, phone, city, state)
			WHERE NOT EXISTS (SELECT 1 FROM employees)`,

		`INSERT INTO salary_records (employee_id, month, year, gross_salary, deductions, net_salary, status)
			SELECT id, 7, 2026, 90000.00, 12000.00, 78000.00, 'paid' FROM employees
			WHERE NOT EXISTS (SELECT 1 FROM salary_records)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("seed statement failed: %v", err)
		}
	}
	log.Println("Seed completed successfully")
}
