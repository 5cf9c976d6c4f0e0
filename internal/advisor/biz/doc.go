// Package biz 实现投资顾问服务的业务逻辑。
//
// 包含三个核心流程：
//   - 问卷评分：将问卷答案映射为风险等级与投资期限；
//   - 资料导入：加载 PDF 与网页、切分、向量化，并原子替换向量索引；
//   - 投资建议：基于风险画像检索相关文本块并调用大模型生成建议。
package biz
